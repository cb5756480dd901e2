package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/keyring"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
)

// AddressDeriver 从主种子派生充值地址，keyring.Provider 实现
type AddressDeriver interface {
	DeriveAddress(c chain.Chain, index uint32) (*keyring.DerivedAddress, error)
	VerifyAddress(c chain.Chain, index uint32, addr string) (bool, error)
}

// AddressService 充值地址分配
// 派生索引直接使用 user_id，数据库行只是缓存，丢了也能重新算出来
type AddressService struct {
	db     *gorm.DB
	keys   AddressDeriver
	chains *chain.Registry
}

func NewAddressService(db *gorm.DB, keys AddressDeriver, chains *chain.Registry) *AddressService {
	return &AddressService{db: db, keys: keys, chains: chains}
}

// GenerateAddress 获取或生成充值地址
// 1. 查库，已有直接返回
// 2. 派生 m/44'/coin'/0'/0/user_id
// 3. 保存，并发插入冲突时重新读取
func (s *AddressService) GenerateAddress(ctx context.Context, userID uint64, currency string) (*model.DepositAddress, error) {
	c, err := s.chains.Get(currency)
	if err != nil {
		return nil, err
	}
	sym := c.Symbol().String()

	// 1. 查库
	if existing, err := s.find(ctx, userID, sym); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("数据库查询错误: %w", err)
	}

	// 2. 派生
	if userID >= hdkeychain.HardenedKeyStart {
		return nil, invalid("user_id", "超出可派生范围")
	}
	index := uint32(userID)
	derived, err := s.keys.DeriveAddress(c, index)
	if err != nil {
		return nil, fmt.Errorf("地址派生失败: %w", err)
	}

	// 3. 保存
	row := &model.DepositAddress{
		UserID:          userID,
		Currency:        sym,
		Address:         derived.Address,
		DerivationIndex: index,
		DerivationPath:  derived.Path,
	}
	err = s.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 同一用户并发请求，另一个请求已经写入
		return s.find(ctx, userID, sym)
	}
	if err != nil {
		return nil, fmt.Errorf("保存地址到数据库失败: %w", err)
	}

	logger.Info("[Address] 新充值地址",
		zap.Uint64("user_id", userID), zap.String("currency", sym), zap.String("path", derived.Path))
	return row, nil
}

// VerifyAddress 重新派生并比较，判断 addr 是否属于该用户
func (s *AddressService) VerifyAddress(_ context.Context, userID uint64, currency, addr string) (bool, error) {
	c, err := s.chains.Get(currency)
	if err != nil {
		return false, err
	}
	if userID >= hdkeychain.HardenedKeyStart {
		return false, nil
	}
	return s.keys.VerifyAddress(c, uint32(userID), addr)
}

// ListAddresses 某个币种的全部充值地址，扫描器使用
func (s *AddressService) ListAddresses(ctx context.Context, currency string) ([]model.DepositAddress, error) {
	var rows []model.DepositAddress
	err := s.db.WithContext(ctx).Where("currency = ?", currency).Order("id").Find(&rows).Error
	return rows, err
}

func (s *AddressService) find(ctx context.Context, userID uint64, currency string) (*model.DepositAddress, error) {
	var row model.DepositAddress
	if err := s.db.WithContext(ctx).Where("user_id = ? AND currency = ?", userID, currency).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
