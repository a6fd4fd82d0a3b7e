package source

import (
	"strings"

	"bills/internal/core"
)

// NewWalletAdapter parses WeChat Pay style bill exports.
func NewWalletAdapter() Adapter {
	return newTableAdapter(schema{
		platform: core.PlatformWallet,
		aliases: [numColumns][]string{
			colDate:      {"交易时间", "时间", "支付时间"},
			colAmount:    {"金额(元)", "金额（元）", "金额", "交易金额(元)"},
			colDirection: {"收/支", "收支"},
			colKind:      {"交易类型", "类型"},
			colMerchant:  {"交易对方", "商户名称", "收/付款方"},
			colItem:      {"商品", "商品说明", "商品名称"},
			colStatus:    {"当前状态", "交易状态", "状态"},
			colMethod:    {"支付方式", "收/付款方式", "资金渠道"},
			colNote:      {"备注", "用户备注", "附言"},
		},
		required:  [][]column{{colDate}, {colAmount}, {colDirection, colKind}},
		markers:   []string{"交易类型", "当前状态", "交易单号", "商户单号", "商品", "支付方式"},
		direction: walletDirection,
	}, "微信", "wechat", "weixin")
}

func walletDirection(dir, kind string) core.TxType {
	switch dir {
	case "支出":
		return core.Expense
	case "收入":
		return core.Income
	case "/", "不计收支":
		return core.Transfer
	}
	for _, k := range []string{"退款", "转入", "收入"} {
		if strings.Contains(kind, k) {
			return core.Income
		}
	}
	return core.Expense
}
