// backend/cmd/reconcile/output.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	recondom "storefront/internal/domain/reconciliation"
)

type listOutput struct {
	Items      []recondom.Entry `json:"items" yaml:"items"`
	TotalCount int              `json:"totalCount" yaml:"totalCount"`
	Page       int              `json:"page" yaml:"page"`
	TotalPages int              `json:"totalPages" yaml:"totalPages"`
}

func outputFormat(cmd *cobra.Command) (string, error) {
	f, _ := cmd.Flags().GetString("output")
	f = strings.ToLower(strings.TrimSpace(f))
	switch f {
	case "", "json":
		return "json", nil
	case "yaml", "yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unsupported output %q (json, yaml)", f)
	}
}

func render(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func filterFromFlags(cmd *cobra.Command) (recondom.Filter, error) {
	var f recondom.Filter

	outcome, _ := cmd.Flags().GetString("outcome")
	f.Outcome = recondom.Outcome(strings.ToUpper(strings.TrimSpace(outcome)))
	if pending, _ := cmd.Flags().GetBool("pending"); pending {
		if f.Outcome != "" && f.Outcome != recondom.OutcomeOrderRecordFailed {
			return f, fmt.Errorf("--pending conflicts with --outcome %s", f.Outcome)
		}
		f.Outcome = recondom.OutcomeOrderRecordFailed
	}
	if f.Outcome != "" && !recondom.IsValidOutcome(f.Outcome) {
		return f, fmt.Errorf("invalid outcome %q", outcome)
	}

	var err error
	if f.CreatedFrom, err = timeFlag(cmd, "from"); err != nil {
		return f, err
	}
	if f.CreatedTo, err = timeFlag(cmd, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func timeFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s %q (RFC3339 or 2006-01-02)", name, v)
}
