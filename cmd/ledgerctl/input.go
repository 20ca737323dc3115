package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
)

// ledgerFile is the export format read by the CLI. A bare JSON array of
// transactions is accepted as well.
type ledgerFile struct {
	Buyer        ledger.Buyer         `json:"buyer"`
	BusinessName string               `json:"business_name"`
	RangeLabel   string               `json:"range_label"`
	Transactions []ledger.Transaction `json:"transactions"`
}

func readLedgerFile(path string, stdin io.Reader) (ledgerFile, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return ledgerFile{}, err
	}
	raw = bytes.TrimSpace(raw)
	var out ledgerFile
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &out.Transactions); err != nil {
			return ledgerFile{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return ledgerFile{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}
