package main

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// errNotAuthenticated makes verify exit non-zero for any verdict but
// Authenticated.
var errNotAuthenticated = errors.New("token was not authenticated")

type verifyResult struct {
	Outcome  string            `json:"outcome"`
	Status   int               `json:"status"`
	Identity string            `json:"identity,omitempty"`
	Failure  string            `json:"failure,omitempty"`
	Error    string            `json:"error,omitempty"`
	Claims   *validator.Claims `json:"claims,omitempty"`
}

func newVerifyCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify [token|-]",
		Short: "Validate a bearer token against the configured key source",
		Long: `Validates a token the way the interceptor would for a secure request
carrying "Authorization: Bearer <token>", and prints the verdict.`,
		Example: `  jwttai verify --config jwttai.yaml eyJhbGciOiJSUzI1NiJ9...

  # read the token from stdin
  echo "eyJ..." | jwttai verify -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			h, err := newHost(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer h.Close()

			if err := h.initialize(cmd.Context()); err != nil {
				return fmt.Errorf("loading key source: %w", err)
			}

			r, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, "https://localhost/", nil)
			if err != nil {
				return err
			}
			r.TLS = &tls.ConnectionState{}
			r.Header.Set("Authorization", "Bearer "+token)

			result := newVerifyResult(h.interceptor.EstablishTrust(r))
			if err := printVerifyResult(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			if result.Status != http.StatusOK {
				return errNotAuthenticated
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	return cmd
}

func readToken(stdin io.Reader, arg string) (string, error) {
	token := arg
	if arg == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
		if err != nil {
			return "", fmt.Errorf("failed to read token from stdin: %w", err)
		}
		token = string(data)
	}

	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	return token, nil
}

func newVerifyResult(v core.Verdict) verifyResult {
	result := verifyResult{
		Outcome:  v.Outcome.String(),
		Status:   v.Status(),
		Identity: v.Identity,
		Claims:   v.Claims,
	}
	if v.Outcome == core.OutcomeRejected {
		result.Failure = v.Failure.String()
		if v.Err != nil {
			result.Error = v.Err.Error()
		}
	}
	return result
}

func printVerifyResult(w io.Writer, result verifyResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(w, "Outcome: ", result.Outcome)
	fmt.Fprintln(w, "Status:  ", result.Status)
	if result.Identity != "" {
		fmt.Fprintln(w, "Identity:", result.Identity)
	}
	if result.Failure != "" {
		fmt.Fprintln(w, "Failure: ", result.Failure)
		fmt.Fprintln(w, "Error:   ", result.Error)
	}
	return nil
}
