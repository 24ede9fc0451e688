package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"kitty/internal/core"
)

// ErrUnrecognizedImport rejects import payloads whose shape cannot be
// identified. Nothing is applied when it is returned.
var ErrUnrecognizedImport = errors.New("unrecognized import document")

// Document is the export/import and backup payload.
type Document struct {
	Config       core.Config        `json:"config"`
	Transactions []core.Transaction `json:"transactions"`
}

// ExportDocument snapshots configuration and the full transaction history.
func (s *Store) ExportDocument() Document {
	return Document{
		Config:       s.Config(),
		Transactions: s.List(),
	}
}

// ImportDocument applies an exported document. Three shapes are accepted: the
// wrapper form {config, transactions}, a bare configuration object (detected
// by its participant/category fields), or a bare array treated as the
// transaction collection. The payload is parsed and validated in full before
// anything is applied, so a malformed document changes no state.
func (s *Store) ImportDocument(data []byte) error {
	cfg, txs, err := parseImport(data)
	if err != nil {
		return err
	}

	if cfg != nil {
		s.ReplaceConfig(*cfg)
	}
	if len(txs) > 0 {
		s.MergeInbound(txs)
	}
	return nil
}

func parseImport(data []byte) (*core.Config, []core.Transaction, error) {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, fmt.Errorf("parse import: %w", err)
	}

	switch probe.(type) {
	case []any:
		var txs []core.Transaction
		if err := json.Unmarshal(data, &txs); err != nil {
			return nil, nil, fmt.Errorf("parse transaction array: %w", err)
		}
		if err := validateImported(txs); err != nil {
			return nil, nil, err
		}
		return nil, txs, nil

	case map[string]any:
		fields := probe.(map[string]any)
		// A JSON null config counts as absent, not as an empty replacement.
		if cfgField, hasConfig := fields["config"]; hasConfig && cfgField != nil {
			var doc Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, nil, fmt.Errorf("parse document: %w", err)
			}
			if err := validateImported(doc.Transactions); err != nil {
				return nil, nil, err
			}
			return &doc.Config, doc.Transactions, nil
		}
		if _, hasTxs := fields["transactions"]; hasTxs {
			var doc Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, nil, fmt.Errorf("parse document: %w", err)
			}
			if err := validateImported(doc.Transactions); err != nil {
				return nil, nil, err
			}
			return nil, doc.Transactions, nil
		}
		_, hasParticipants := fields["participants"]
		_, hasCategories := fields["categories"]
		if hasParticipants || hasCategories {
			var cfg core.Config
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, nil, fmt.Errorf("parse config: %w", err)
			}
			return &cfg, nil, nil
		}
	}
	return nil, nil, ErrUnrecognizedImport
}

func validateImported(txs []core.Transaction) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %q: %w", tx.ID, err)
		}
	}
	return nil
}
