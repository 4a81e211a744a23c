package auditlog

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

type summaryRow struct {
	Symbol   string
	Buys     int
	BuyQty   int
	Sells    int
	SellQty  int
	Holds    int
	Rejected int
}

func summaryCSVPath(t time.Time) string {
	d := t.In(ist).Format("2006-01-02")
	return filepath.Join(logDir(), "summary", d+".csv")
}

// SummarizeDay aggregates the day's audit entries into a per-symbol CSV
// and returns its path. A day with no audit file yields an empty path, not
// an error.
func SummarizeDay(t time.Time) (string, error) {
	inPath := dailyFilepath(t)
	if _, err := os.Stat(inPath); err != nil {
		return "", nil
	}
	f, err := os.Open(inPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	rows := map[string]*summaryRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		key := e.Symbol
		if key == "" {
			// holds, no-ideal and rejected calls have no symbol
			key = "-"
		}
		row := rows[key]
		if row == nil {
			row = &summaryRow{Symbol: key}
			rows[key] = row
		}
		if e.Error != "" {
			row.Rejected++
			continue
		}
		switch e.Action {
		case "BUY_STOCK":
			row.Buys++
			row.BuyQty += e.Quantity
		case "SELL_STOCK":
			row.Sells++
			row.SellQty += e.Quantity
		default:
			row.Holds++
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	outPath := summaryCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := csv.NewWriter(out)
	_ = w.Write([]string{"symbol", "buys", "buy_qty", "sells", "sell_qty", "holds", "rejected"})
	for _, k := range keys {
		r := rows[k]
		_ = w.Write([]string{
			r.Symbol,
			strconv.Itoa(r.Buys), strconv.Itoa(r.BuyQty),
			strconv.Itoa(r.Sells), strconv.Itoa(r.SellQty),
			strconv.Itoa(r.Holds), strconv.Itoa(r.Rejected),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

// SummarizeToday summarizes the current IST day.
func SummarizeToday() (string, error) {
	return SummarizeDay(time.Now().In(ist))
}
