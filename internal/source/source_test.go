package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	"bills/internal/core"
)

const walletExport = `微信支付账单明细,,,,,,,,,,
微信昵称：[tester],,,,,,,,,,
起始时间：[2025-01-01 00:00:00] 终止时间：[2025-01-31 23:59:59],,,,,,,,,,
----------------------微信支付账单明细列表--------------------,,,,,,,,,,
交易时间,交易类型,交易对方,商品,收/支,金额(元),支付方式,当前状态,交易单号,商户单号,备注
2025-01-05 08:30:00,商户消费,Coffee Shop,Latte,支出,¥23.50,零钱,支付成功,1001,2001,/
2025-01-06 12:00:00,微信红包,张三,/,/,¥5.00,零钱,已存入零钱,1002,2002,/
2025-01-07 18:15:00,退款,Bookstore,Novel,,"¥1,024.00",招商银行,已全额退款,1003,2003,returned
`

const paymentExport = `支付宝交易记录明细查询
账号:[tester@example.com]
交易时间,交易分类,交易对方,对方账号,商品说明,收/支,金额,收/付款方式,交易状态,交易订单号,商家订单号,备注,
2025-01-07 09:00:00,餐饮美食,Bakery,b***@x.com,Bread,支出,12.00,花呗,交易成功,3001,4001,,
2025-01-08 10:00:00,转账红包,李四,l***@x.com,转账,收入,100.00,余额,交易成功,3002,4002,,
2025-01-09 11:00:00,投资理财,余额宝,,收益发放,不计收支,0.01,,交易成功,3003,4003,,
2025/01/10,日用百货,Market,,Soap,转出,(8.80),余额,交易成功,3004,4004,,
------------------------------------------------------------------------------------,,,,,,,,,,,,
共4笔记录,,,,,,,,,,,,
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseFile_Wallet(t *testing.T) {
	path := writeFixture(t, "export-1.csv", walletExport)

	platform, records, warnings, err := ParseFile(path, DefaultAdapters())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if platform != core.PlatformWallet {
		t.Errorf("platform = %q, want wallet", platform)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	first := records[0]
	if !first.Date.Equal(time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("first date = %v", first.Date)
	}
	first.Date = time.Time{}
	want := core.Transaction{
		Type:     core.Expense,
		Amount:   core.Money{Cents: 2350},
		Platform: core.PlatformWallet,
		Merchant: "Coffee Shop",
		Item:     "Latte",
		Method:   "零钱",
		Status:   "支付成功",
	}
	if first != want {
		t.Errorf("first record = %+v\nwant %+v", first, want)
	}

	if records[1].Type != core.Transfer || records[1].Item != "" {
		t.Errorf("second record = %+v, want transfer without item", records[1])
	}
	if records[2].Type != core.Income || records[2].Amount.Cents != 102400 || records[2].Note != "returned" {
		t.Errorf("third record = %+v, want income of 1024.00", records[2])
	}
}

func TestParseFile_Payment(t *testing.T) {
	path := writeFixture(t, "export-2.csv", paymentExport)

	platform, records, warnings, err := ParseFile(path, DefaultAdapters())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if platform != core.PlatformPayment {
		t.Errorf("platform = %q, want payment", platform)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4 (footer rows skipped)", len(records))
	}

	tests := []struct {
		typ    core.TxType
		cents  int64
		method string
	}{
		{core.Expense, 1200, "花呗"},
		{core.Income, 10000, "余额"},
		{core.Transfer, 1, ""},
		{core.Expense, 880, "余额"},
	}
	for i, tt := range tests {
		r := records[i]
		if r.Type != tt.typ || r.Amount.Cents != tt.cents || r.Method != tt.method {
			t.Errorf("record %d = %+v, want type %s amount %d method %q", i, r, tt.typ, tt.cents, tt.method)
		}
		if r.Platform != core.PlatformPayment {
			t.Errorf("record %d platform = %q", i, r.Platform)
		}
	}
	if !records[3].Date.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("slash date = %v", records[3].Date)
	}
}

func TestParseFile_RowWarnings(t *testing.T) {
	content := `交易时间,交易类型,交易对方,商品,收/支,金额(元),支付方式,当前状态,交易单号,商户单号,备注
2025-01-05 08:30:00,商户消费,A,x,支出,¥1.00,零钱,支付成功,1,1,/
yesterday,商户消费,B,x,支出,¥2.00,零钱,支付成功,2,2,/
2025-01-06 08:30:00,商户消费,C,x,支出,N/A,零钱,支付成功,3,3,/
`
	path := writeFixture(t, "wechat.csv", content)

	_, records, warnings, err := ParseFile(path, DefaultAdapters())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 (bad rows are flagged, not removed)", len(records))
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", warnings)
	}

	if w := warnings[0]; w.Kind != WarnBadDate || w.Row != 3 || w.Value != "yesterday" || w.File != "wechat.csv" {
		t.Errorf("first warning = %+v", w)
	}
	if !records[1].Date.IsZero() {
		t.Errorf("bad date row should carry a zero date, got %v", records[1].Date)
	}

	if w := warnings[1]; w.Kind != WarnBadAmount || w.Row != 4 {
		t.Errorf("second warning = %+v", w)
	}
	if records[2].Amount.Cents != 0 {
		t.Errorf("bad amount should coerce to 0, got %d", records[2].Amount.Cents)
	}
	if !strings.Contains(warnings[1].String(), "bad_amount") {
		t.Errorf("String() = %q", warnings[1].String())
	}
}

func TestParseFile_NumericDatesInCSV(t *testing.T) {
	content := `交易时间,交易类型,交易对方,商品,收/支,金额(元),支付方式,当前状态,交易单号,商户单号,备注
2025,商户消费,A,x,支出,¥1.00,零钱,支付成功,1,1,/
12,商户消费,B,x,支出,¥2.00,零钱,支付成功,2,2,/
45662,商户消费,C,x,支出,¥3.00,零钱,支付成功,3,3,/
`
	path := writeFixture(t, "wechat.csv", content)

	_, records, warnings, err := ParseFile(path, DefaultAdapters())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(warnings) != 3 {
		t.Fatalf("warnings = %v, want a bad date for every row", warnings)
	}
	for i, w := range warnings {
		if w.Kind != WarnBadDate || w.Row != i+2 {
			t.Errorf("warning %d = %+v", i, w)
		}
		if !records[i].Date.IsZero() {
			t.Errorf("record %d date = %v, want zero", i, records[i].Date)
		}
	}
}

func TestParseFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "hinted file missing amount",
			file:    "微信账单.csv",
			content: "交易时间,交易对方,收/支\n2025-01-05,A,支出\n",
			want:    "missing mandatory column(s): amount",
		},
		{
			name:    "payment missing direction",
			file:    "alipay.csv",
			content: "交易时间,交易对方,金额\n2025-01-05,A,1.00\n",
			want:    "missing mandatory column(s): direction",
		},
		{
			name:    "unrecognized layout",
			file:    "notes.csv",
			content: "title,body\nhello,world\n",
			want:    "unrecognized format",
		},
		{
			name:    "unsupported extension",
			file:    "bills.txt",
			content: "whatever",
			want:    "unsupported file format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixture(t, tt.file, tt.content)
			_, _, _, err := ParseFile(path, DefaultAdapters())
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if pe.File != tt.file {
				t.Errorf("ParseError.File = %q, want %q", pe.File, tt.file)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParseFile_GB18030(t *testing.T) {
	encoded, err := simplifiedchinese.GB18030.NewEncoder().String(paymentExport)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeFixture(t, "alipay_gbk.csv", encoded)

	platform, records, _, err := ParseFile(path, DefaultAdapters())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if platform != core.PlatformPayment || len(records) != 4 {
		t.Errorf("platform = %q records = %d, want payment/4", platform, len(records))
	}
	if records[1].Merchant != "李四" {
		t.Errorf("merchant = %q, want 李四", records[1].Merchant)
	}
}

func TestParseFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wechat.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"微信支付账单明细"},
		{"交易时间", "交易类型", "交易对方", "商品", "收/支", "金额(元)", "支付方式", "当前状态"},
		{"2025-01-05 08:30:00", "商户消费", "Coffee Shop", "Latte", "支出", "¥23.50", "零钱", "支付成功"},
		{45663.5, "商户消费", "Bakery", "Bread", "支出", 12.5, "零钱", "支付成功"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		row := row
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	platform, records, warnings, err := ParseFile(path, DefaultAdapters())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if platform != core.PlatformWallet {
		t.Errorf("platform = %q, want wallet", platform)
	}
	if len(warnings) != 0 || len(records) != 2 {
		t.Fatalf("records = %d warnings = %v", len(records), warnings)
	}
	if !records[1].Date.Equal(time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("serial date = %v, want 2025-01-06 12:00", records[1].Date)
	}
	if records[1].Amount.Cents != 1250 {
		t.Errorf("numeric amount = %d, want 1250", records[1].Amount.Cents)
	}
}

func TestParseFile_XLS(t *testing.T) {
	platform, records, warnings, err := ParseFile(filepath.Join("testdata", "wallet.xls"), DefaultAdapters())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if platform != core.PlatformWallet {
		t.Errorf("platform = %q, want wallet", platform)
	}
	if len(warnings) != 0 || len(records) != 2 {
		t.Fatalf("records = %d warnings = %v", len(records), warnings)
	}

	first := records[0]
	if !first.Date.Equal(time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("text date = %v", first.Date)
	}
	if first.Merchant != "Coffee Shop" || first.Amount.Cents != 2350 || first.Note != "" {
		t.Errorf("first record = %+v", first)
	}

	second := records[1]
	if !second.Date.Equal(time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("serial date = %v, want 2025-01-06 12:00", second.Date)
	}
	if second.Amount.Cents != 1250 || second.Type != core.Expense {
		t.Errorf("second record = %+v", second)
	}
	if second.Note != "gift\nfor mum" {
		t.Errorf("note = %q, want CRLF folded to LF", second.Note)
	}
}

func TestReadTable_XLS(t *testing.T) {
	rows, err := ReadTable(filepath.Join("testdata", "wallet.xls"))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "微信支付账单明细" || len(rows[1]) != 11 || rows[1][10] != "备注" {
		t.Errorf("unexpected leading rows: %q %q", rows[0], rows[1])
	}
}

func TestCellText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", ""},
		{"", ""},
		{"a/b", "a/b"},
		{"line one\r\nline two", "line one\nline two"},
		{"old mac\rbreak", "old mac\nbreak"},
		{"already\nfine", "already\nfine"},
	}
	for _, tt := range tests {
		if got := cellText(tt.in); got != tt.want {
			t.Errorf("cellText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	minimal := [][]string{{"交易时间", "金额", "收/支"}}
	adapters := DefaultAdapters()

	tests := []struct {
		name string
		file string
		rows [][]string
		want core.Platform
	}{
		{"tie goes to payment", "export.csv", minimal, core.PlatformPayment},
		{"file name hint wins a tie", "微信支付账单.csv", minimal, core.PlatformWallet},
		{"english hint", "WeChat-2025.csv", minimal, core.PlatformWallet},
		{"wallet markers", "export.csv", [][]string{{"交易时间", "交易类型", "交易对方", "商品", "收/支", "金额(元)", "支付方式", "当前状态"}}, core.PlatformWallet},
		{"wallet without direction column", "export.csv", [][]string{{"交易时间", "交易类型", "金额(元)"}}, core.PlatformWallet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Detect(tt.file, tt.rows, adapters)
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if a.Platform() != tt.want {
				t.Errorf("Detect() = %q, want %q", a.Platform(), tt.want)
			}
		})
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		name string
		fn   func(dir, kind string) core.TxType
		dir  string
		kind string
		want core.TxType
	}{
		{"wallet expense", walletDirection, "支出", "", core.Expense},
		{"wallet income", walletDirection, "收入", "", core.Income},
		{"wallet slash", walletDirection, "/", "微信红包", core.Transfer},
		{"wallet neutral", walletDirection, "不计收支", "", core.Transfer},
		{"wallet refund by type", walletDirection, "", "微信红包-退款", core.Income},
		{"wallet transfer in by type", walletDirection, "", "零钱转入", core.Income},
		{"wallet default", walletDirection, "", "商户消费", core.Expense},
		{"payment expense", paymentDirection, "支出", "", core.Expense},
		{"payment out", paymentDirection, "转出", "", core.Expense},
		{"payment in", paymentDirection, "转入", "", core.Income},
		{"payment neutral", paymentDirection, "不计收支", "", core.Transfer},
		{"payment unknown", paymentDirection, "", "", core.Expense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.dir, tt.kind); got != tt.want {
				t.Errorf("direction(%q, %q) = %q, want %q", tt.dir, tt.kind, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2025-01-05 08:30:00", time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC), true},
		{"2025-01-05 08:30", time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC), true},
		{"2025-01-05", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025/1/5 8:30:00", time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC), true},
		{"2025.01.05", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"\t2025-01-05\t", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025-01-05T08:30:00", time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC), true},
		{"45662", time.Time{}, false},
		{"2025", time.Time{}, false},
		{"", time.Time{}, false},
		{"2025-13-45", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"0", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSheetDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2025-01-05 08:30:00", time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC), true},
		{"45662", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"45663.5", time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC), true},
		{"61", time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2958465", time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"60", time.Time{}, false},
		{"1", time.Time{}, false},
		{"2958466", time.Time{}, false},
		{"NaN", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSheetDate(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseSheetDate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSheetDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"a.csv", "B.XLS", "c.xlsx"} {
		if !Supported(name) {
			t.Errorf("Supported(%q) = false", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.pdf"} {
		if Supported(name) {
			t.Errorf("Supported(%q) = true", name)
		}
	}
}
