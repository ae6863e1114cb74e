package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"payidcheck/internal/app"
	"payidcheck/internal/config"
	"payidcheck/internal/payid"
)

type validateOptions struct {
	strictCase    bool
	noDomainCheck bool
	includePrefix bool
	jsonOutput    bool
	checkLiveness bool
}

type validateResult struct {
	Input      string            `json:"input"`
	Valid      bool              `json:"valid"`
	Usable     *bool             `json:"usable,omitempty"`
	RecordType string            `json:"record_type,omitempty"`
	PayID      *payid.Identifier `json:"payid,omitempty"`
	Display    string            `json:"display,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// newChecker is replaced in tests to avoid live DNS.
var newChecker = func(cfg config.Config) (app.DomainChecker, error) {
	return app.NewChecker(cfg)
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [payid...]",
		Short: "Validate PayIDs given as arguments or one per line on stdin",
		Long: `Validate PayIDs and print their canonical form.

Without arguments, PayIDs are read one per line from standard input and blank
lines are skipped. The command exits with status 1 when any input is invalid.

Example:
  payid validate 'payid:Alice$Bücher.de'
  cat payids.txt | payid validate --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return runValidate(cmd, cfg, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.strictCase, "strict-case", false, "Reject uppercase characters instead of folding them")
	cmd.Flags().BoolVar(&opts.noDomainCheck, "no-domain-check", false, "Skip the domain dot and empty label checks")
	cmd.Flags().BoolVar(&opts.includePrefix, "include-prefix", false, "Print the canonical form with the payid: prefix")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print one JSON object per input")
	cmd.Flags().BoolVar(&opts.checkLiveness, "check-liveness", false, "Also require MX, A or AAAA records for the domain")
	return cmd
}

func runValidate(cmd *cobra.Command, cfg config.Config, opts *validateOptions, args []string) error {
	popts := cfg.ValidationOptions()
	flags := cmd.Flags()
	if flags.Changed("strict-case") {
		popts.StrictCase = opts.strictCase
	}
	if flags.Changed("no-domain-check") {
		popts.CheckDomain = !opts.noDomainCheck
	}
	if flags.Changed("include-prefix") {
		popts.IncludePrefix = opts.includePrefix
	}

	var checker app.DomainChecker
	if opts.checkLiveness {
		var err error
		checker, err = newChecker(cfg)
		if err != nil {
			return err
		}
	}

	inputs := args
	if len(inputs) == 0 {
		var err error
		inputs, err = readLines(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	validator := payid.New()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	enc := json.NewEncoder(out)
	failed := false
	for _, in := range inputs {
		res := validateResult{Input: in}
		id, err := validator.Validate(in, popts)
		if err == nil {
			res.Valid = true
			res.PayID = &id
			res.Display = id.String()
			if checker != nil {
				recordType, checkErr := checker.Check(cmd.Context(), id.Domain().ACE())
				usable := checkErr == nil
				res.Usable = &usable
				res.RecordType = string(recordType)
				err = checkErr
			}
		}
		if err != nil {
			failed = true
			res.Kind, res.Error = describe(err)
		}

		if opts.jsonOutput {
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
			continue
		}
		if err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", in, err)
			continue
		}
		if res.RecordType != "" {
			fmt.Fprintf(out, "%s\t%s\n", res.Display, res.RecordType)
			continue
		}
		fmt.Fprintln(out, res.Display)
	}
	if failed {
		return errInvalidInput
	}
	return nil
}

func describe(err error) (string, string) {
	var perr *payid.Error
	if errors.As(err, &perr) {
		return perr.Kind.String(), perr.Reason
	}
	return "error", err.Error()
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
