// Package source discovers and parses the JSONL feed files the upstream
// aggregator writes: account declarations and realized spend records.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/theirongolddev/fincast/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// recordNamespace seeds the name-based UUIDs derived for records that arrive
// without an id.
var recordNamespace = uuid.MustParse("6f1f4c36-8d0e-4c52-9a51-3c7b2f0d9e11")

// Accepted date layouts, most specific last.
var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// ParseResult holds the output of parsing a single feed file.
type ParseResult struct {
	Accounts    []model.Account
	Records     []model.SpendRecord
	Lines       int
	ParseErrors int
	Err         error
}

// ParseFile reads a JSONL feed file. Accounts are deduplicated by id and
// records by id, keeping the last occurrence of each in first-seen order.
//
// Entry routing by top-level "type" field:
//   - "account" → full JSON parse, credit limit must be a positive decimal
//   - "spend"   → full JSON parse, date and amount required
//   - everything else → skip without decoding
func ParseFile(df DiscoveredFile) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	var (
		res          ParseResult
		accountIdx   = make(map[string]int)
		recordIdx    = make(map[string]int)
		contentCount = make(map[string]int)
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		res.Lines++

		switch extractTopLevelType(line) {
		case TypeAccount:
			var raw RawLine
			if err := json.Unmarshal(line, &raw); err != nil {
				res.ParseErrors++
				continue
			}
			a, err := toAccount(raw)
			if err != nil {
				res.ParseErrors++
				continue
			}
			if i, ok := accountIdx[a.ID]; ok {
				res.Accounts[i] = a
				continue
			}
			accountIdx[a.ID] = len(res.Accounts)
			res.Accounts = append(res.Accounts, a)

		case TypeSpend:
			var raw RawLine
			if err := json.Unmarshal(line, &raw); err != nil {
				res.ParseErrors++
				continue
			}
			r, err := toRecord(raw)
			if err != nil {
				res.ParseErrors++
				continue
			}
			if r.ID == "" {
				key := contentKey(r)
				r.ID = DeriveRecordID(key, contentCount[key])
				contentCount[key]++
			}
			if i, ok := recordIdx[r.ID]; ok {
				res.Records[i] = r
				continue
			}
			recordIdx[r.ID] = len(res.Records)
			res.Records = append(res.Records, r)
		}
	}

	if err := scanner.Err(); err != nil {
		return ParseResult{Err: err}
	}
	return res
}

// DeriveRecordID builds a stable id from a record's content and its ordinal
// among identical records in the same feed, so that two genuine identical
// charges stay distinct while re-ingesting the feed maps onto the same ids.
func DeriveRecordID(content string, ordinal int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s|%d", content, ordinal))).String()
}

func contentKey(r model.SpendRecord) string {
	return strings.Join([]string{
		r.AccountID,
		r.Date.Format("2006-01-02"),
		r.Amount.String(),
		r.Category,
		r.Description,
	}, "|")
}

func toAccount(raw RawLine) (model.Account, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.Account{}, fmt.Errorf("account: missing id")
	}
	limit, err := decimal.NewFromString(strings.TrimSpace(raw.CreditLimit))
	if err != nil {
		return model.Account{}, fmt.Errorf("account %s: credit_limit: %w", id, err)
	}
	if !limit.IsPositive() {
		return model.Account{}, fmt.Errorf("account %s: credit_limit must be positive", id)
	}
	return model.Account{
		ID:          id,
		Name:        strings.TrimSpace(raw.Name),
		CreditLimit: limit,
		Metadata:    raw.Metadata,
	}, nil
}

func toRecord(raw RawLine) (model.SpendRecord, error) {
	accountID := strings.TrimSpace(raw.AccountID)
	if accountID == "" {
		return model.SpendRecord{}, fmt.Errorf("spend: missing account_id")
	}
	date, err := parseDate(raw.Date)
	if err != nil {
		return model.SpendRecord{}, fmt.Errorf("spend: %w", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(raw.Amount))
	if err != nil {
		return model.SpendRecord{}, fmt.Errorf("spend: amount: %w", err)
	}
	return model.SpendRecord{
		ID:          strings.TrimSpace(raw.ID),
		AccountID:   accountID,
		Date:        date,
		Amount:      amount,
		Category:    strings.TrimSpace(raw.Category),
		Description: strings.TrimSpace(raw.Description),
		Installment: raw.Installment,
		Shared:      raw.Shared,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// typeKey is the byte sequence for a JSON key named "type" (with quotes).
var typeKey = []byte(`"type"`)

// extractTopLevelType finds the top-level "type" field in a JSONL line.
// Tracks brace depth and string boundaries so nested "type" keys (inside
// metadata, say) are ignored.
func extractTopLevelType(line []byte) string {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				val, isKey := classifyType(line, i+len(typeKey))
				if isKey {
					return val
				}
			}
			i = skipJSONString(line, i)
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			i++
		}
	}
	return ""
}

// classifyType checks whether pos follows a JSON key (expects : then value).
// isKey=false means "type" appeared as a value and the caller should continue.
func classifyType(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true
	}
	i++

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 16 {
		return "", true
	}
	v := string(line[i : i+end])
	switch v {
	case TypeAccount, TypeSpend:
		return v, true
	}
	return "", true
}

// skipJSONString advances past a JSON string starting at the opening quote.
//
//nolint:gosec // manual bounds checking throughout
func skipJSONString(line []byte, i int) int {
	i++
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}
