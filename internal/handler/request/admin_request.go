package request

type ReviewWithdrawalRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Remark string `json:"remark" binding:"max=255"`
}

type SetVIPTierRequest struct {
	Tier *int `json:"tier" binding:"required,min=0"`
}
