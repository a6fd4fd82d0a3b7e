package source

import "bills/internal/core"

// NewPaymentAdapter parses Alipay style bill exports. Unlike the wallet
// format the direction column is mandatory.
func NewPaymentAdapter() Adapter {
	return newTableAdapter(schema{
		platform: core.PlatformPayment,
		aliases: [numColumns][]string{
			colDate:      {"交易时间", "时间", "创建时间", "支付时间", "交易创建时间"},
			colAmount:    {"金额（元）", "金额(元)", "金额", "交易金额"},
			colDirection: {"收/支", "收支", "收支类型"},
			colMerchant:  {"交易对方", "对方", "商家", "商户名称"},
			colItem:      {"商品说明", "商品", "商品名称", "标题", "事由"},
			colStatus:    {"交易状态", "状态"},
			colMethod:    {"支付方式", "收/付款方式", "资金渠道"},
			colNote:      {"备注", "用户备注", "附言"},
		},
		required:  [][]column{{colDate}, {colAmount}, {colDirection}},
		markers:   []string{"交易分类", "对方账号", "商品说明", "收/付款方式", "交易订单号", "商家订单号", "交易创建时间", "资金状态"},
		direction: paymentDirection,
	}, "支付宝", "alipay")
}

func paymentDirection(dir, _ string) core.TxType {
	switch dir {
	case "支出", "转出":
		return core.Expense
	case "收入", "转入":
		return core.Income
	case "不计收支":
		return core.Transfer
	}
	return core.Expense
}
