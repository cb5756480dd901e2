package bitcoin

// 交易体积模型 (P2PKH, vbytes)
const (
	txOverheadVBytes = 10
	inputVBytes      = 148
	outputVBytes     = 34

	// DustThreshold 低于该值的 P2PKH 输出不会被节点转发
	DustThreshold int64 = 546
)

// EstimateTxSize 10 + 148*inputs + 34*outputs
func EstimateTxSize(inputs, outputs int) int64 {
	return txOverheadVBytes + inputVBytes*int64(inputs) + outputVBytes*int64(outputs)
}

// EstimateFeeSats 费率 (sat/vB) × 体积
func EstimateFeeSats(feeRate int64, inputs, outputs int) int64 {
	return feeRate * EstimateTxSize(inputs, outputs)
}
