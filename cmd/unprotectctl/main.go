// Command unprotectctl validates, reads and updates unprotectd settings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/client"
)

const usage = `usage: unprotectctl [global flags] <command> [flags]

commands:
  validate  check an allow-list locally without contacting the server
  get       print the stored settings
  set       validate and store new settings
  whoami    print the address the server resolves for this client
  access    print the bypass decision for this client

global flags:
`

type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must be Name: value, got %q", s)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("unprotectctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}

	var (
		serverURL string
		token     string
		timeout   time.Duration
	)
	global.StringVar(&serverURL, "server", envOr("UNPROTECT_SERVER", "http://127.0.0.1:8080"), "unprotectd base URL")
	global.StringVar(&token, "token", os.Getenv("UNPROTECT_ADMIN_TOKEN"), "admin token")
	global.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := client.New(serverURL, token)
	cmd, cmdArgs := global.Arg(0), global.Args()[1:]

	var err error
	switch cmd {
	case "validate":
		err = runValidate(cmdArgs, stdin, stdout, stderr)
	case "get":
		err = runGet(ctx, c, stdout)
	case "set":
		err = runSet(ctx, c, cmdArgs, stdin, stdout, stderr)
	case "whoami":
		err = runWhoami(ctx, c, cmdArgs, stdout, stderr)
	case "access":
		err = runAccess(ctx, c, cmdArgs, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		global.Usage()
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runValidate(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "-", "allow-list file, one entry per line (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := readInput(*file, stdin)
	if err != nil {
		return err
	}

	cfg, err := unprotect.ValidateOptions(unprotect.Options{IPAddresses: raw})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "ok: %d entries\n", len(cfg.AllowList))
	for _, entry := range cfg.AllowList.IPv6Entries() {
		fmt.Fprintf(stdout, "warning: %s is an IPv6 entry and never matches\n", entry)
	}
	return nil
}

func runGet(ctx context.Context, c *client.Client, stdout io.Writer) error {
	rec, err := c.GetSettings(ctx)
	if err != nil {
		return err
	}
	return printJSON(stdout, rec)
}

func runSet(ctx context.Context, c *client.Client, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "-", "allow-list file, one entry per line (- for stdin)")
	trust := fs.Bool("trust-logged-in", false, "let logged-in users bypass the password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := readInput(*file, stdin)
	if err != nil {
		return err
	}

	rec, err := c.PutSettings(ctx, unprotect.Options{
		GiveAccess:  unprotect.FormatTrustFlag(*trust),
		IPAddresses: raw,
	})
	if err != nil {
		return err
	}
	return printJSON(stdout, rec)
}

func runWhoami(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(stderr)
	headers := headerFlags{}
	fs.Var(headers, "H", "extra request header, Name: value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.ClientAddress(ctx, headers)
	if err != nil {
		return err
	}
	if res.ClientAddress == "" {
		fmt.Fprintln(stdout, "client address could not be determined")
		return nil
	}
	fmt.Fprintf(stdout, "%s (from %s)\n", res.ClientAddress, res.Source)
	return nil
}

func runAccess(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("access", flag.ContinueOnError)
	fs.SetOutput(stderr)
	session := fs.String("session", "", "session token to present")
	headers := headerFlags{}
	fs.Var(headers, "H", "extra request header, Name: value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := c.Access(ctx, *session, headers)
	if err != nil {
		return err
	}
	return printJSON(stdout, d)
}

func readInput(file string, stdin io.Reader) (string, error) {
	var (
		b   []byte
		err error
	)
	if file == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(b), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
