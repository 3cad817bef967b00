// Command anchorctl is the operator CLI of the anchor platform.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"anchorplatform/services/recon"
)

const (
	callCommand      = "call"
	tokenCommand     = "token"
	reconRunsCommand = "recon-runs"
	defaultEndpoint  = "http://localhost:8085"
	tokenEnv         = "ANCHOR_TOKEN"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case callCommand:
		err = runCall(os.Args[2:], os.Stdout)
	case tokenCommand:
		err = runToken(os.Args[2:], os.Stdout)
	case reconRunsCommand:
		err = runReconRuns(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: anchorctl <command> [flags]

Commands:
  %s <method> [params-json]   invoke a JSON-RPC method
  %s                          mint a bearer token for the platform API
  %s                          list recent reconciliation runs
`, callCommand, tokenCommand, reconRunsCommand)
}

func runCall(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(callCommand, flag.ContinueOnError)
	endpoint := fs.String("endpoint", defaultEndpoint, "platform API base URL")
	token := fs.String("token", os.Getenv(tokenEnv), "bearer token (defaults to $"+tokenEnv+")")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("method required")
	}
	params := json.RawMessage("{}")
	if fs.NArg() > 1 {
		raw := strings.TrimSpace(fs.Arg(1))
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("params must be valid JSON")
		}
		params = json.RawMessage(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	result, err := call(ctx, http.DefaultClient, *endpoint, *token, fs.Arg(0), params)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	_, err = out.Write(pretty.Bytes())
	return err
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(ctx context.Context, client *http.Client, endpoint, token, method string, params json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(rpcEnvelope{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(endpoint, "/")+"/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var reply rpcReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", reply.Error.Code, reply.Error.Message)
	}
	return reply.Result, nil
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("ANCHOR_JWT_SECRET"), "HMAC secret shared with the platform")
	subject := fs.String("sub", "anchorctl", "token subject")
	issuer := fs.String("iss", "", "token issuer")
	audience := fs.String("aud", "", "token audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := mintToken(*secret, *subject, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func mintToken(secret, subject, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("secret required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func runReconRuns(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(reconRunsCommand, flag.ContinueOnError)
	indexPath := fs.String("index", "anchor-data/recon/index.db", "path to the reconciliation index")
	limit := fs.Int("limit", 10, "maximum number of runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*indexPath); err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	index, err := recon.OpenIndex(*indexPath)
	if err != nil {
		return err
	}
	defer index.Close()

	runs, err := index.Recent(context.Background(), *limit)
	if err != nil {
		return err
	}
	return printRuns(out, runs)
}

func printRuns(out io.Writer, runs []recon.RunRecord) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tWINDOW START\tWINDOW END\tROWS\tANOMALIES\tCSV")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID,
			run.WindowStart.Format(time.RFC3339),
			run.WindowEnd.Format(time.RFC3339),
			run.Rows,
			run.Anomalies,
			run.CSVPath)
	}
	return w.Flush()
}
