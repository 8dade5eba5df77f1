package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/org/authcore/internal/auth"
	"github.com/org/authcore/internal/crypto"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:           "authctl",
	Short:         "authcore CLI",
	Long:          "A CLI for authenticating against and administering an authcore server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Env var overrides are applied in newClient()
		var err error
		cfg, err = loadConfig(configPath())
		return err
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: $AUTHCTL_CONFIG or ~/.authctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(passwordCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(metricsCmd())
}

// readSecret returns args[idx] when present, otherwise prompts without echo.
func readSecret(prompt string, args []string, idx int) (string, error) {
	if len(args) > idx {
		return args[idx], nil
	}
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text()), scanner.Err()
}

// --- health ---

func healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			deep, _ := cmd.Flags().GetBool("deep")
			path := "/common/health"
			if deep {
				path = "/common/health/deep"
			}
			result, err := newClient().get(path)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().Bool("deep", false, "Include the user store check")
	return cmd
}

// --- accounts ---

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <email> [password]",
		Short: "Create an account",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret("Password: ", args, 1)
			if err != nil {
				return err
			}
			result, err := newClient().post("/common/auth/register", map[string]any{
				"email":    args[0],
				"password": password,
			})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> [password]",
		Short: "Log in and store the token pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret("Password: ", args, 1)
			if err != nil {
				return err
			}
			result, err := newClient().postForm("/common/auth/login", url.Values{
				"username": {args[0]},
				"password": {password},
			})
			if err != nil {
				return err
			}
			storeTokens(result)
			printResult(result)
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RefreshToken == "" {
				return fmt.Errorf("no refresh token stored, run authctl login first")
			}
			result, err := newClient().post("/common/auth/refresh", map[string]any{
				"refresh_token": cfg.RefreshToken,
			})
			if err != nil {
				return err
			}
			storeTokens(result)
			printResult(result)
			return nil
		},
	}
}

// storeTokens saves a token pair response to the config file.
func storeTokens(result map[string]any) {
	access, _ := result["access_token"].(string)
	refresh, _ := result["refresh_token"].(string)
	if access == "" {
		return
	}
	cfg.AccessToken = access
	cfg.RefreshToken = refresh
	path := configPath()
	if err := saveConfig(path, cfg); err != nil {
		printError("saving tokens: " + err.Error())
		return
	}
	fmt.Fprintln(os.Stderr, "Tokens saved to "+path)
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the principal of the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().get("/common/whoami")
			if err != nil {
				return err
			}
			if user, ok := result["user"].(map[string]any); ok {
				printResult(user)
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- password (offline) ---

func passwordCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "password", Short: "Hash and verify passwords locally"}

	hashCmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret("Password: ", args, 0)
			if err != nil {
				return err
			}
			digest, err := crypto.HashPassword(password)
			if err != nil {
				return err
			}
			printResult(map[string]any{"hash": digest})
			return nil
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify <hash> [password]",
		Short: "Check a password against a bcrypt hash",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret("Password: ", args, 1)
			if err != nil {
				return err
			}
			printResult(map[string]any{"valid": crypto.VerifyPassword(args[0], password)})
			return nil
		},
	}

	cmd.AddCommand(hashCmd, verifyCmd)
	return cmd
}

// --- token (offline) ---

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Issue and inspect tokens with a local secret"}
	cmd.PersistentFlags().String("secret", "", "Signing secret (default: $APP_SECRET_KEY)")

	issueCmd := &cobra.Command{
		Use:   "issue <subject>",
		Short: "Sign a token for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := localTokens(cmd)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("type")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = svc.AccessTTL()
				if auth.TokenType(kind) == auth.TokenRefresh {
					ttl = svc.RefreshTTL()
				}
			}
			tok, err := svc.Issue(args[0], auth.TokenType(kind), ttl)
			if err != nil {
				return err
			}
			printResult(map[string]any{"token": tok, "type": kind, "expires_in": ttl.String()})
			return nil
		},
	}
	issueCmd.Flags().String("type", string(auth.TokenAccess), "Token type: access or refresh")
	issueCmd.Flags().Duration("ttl", 0, "Lifetime (default: the configured TTL for the type)")

	verifyCmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := localTokens(cmd)
			if err != nil {
				return err
			}
			claims, err := svc.Verify(args[0])
			if err != nil {
				reason := string(auth.ReasonOf(err))
				if reason == "" {
					return err
				}
				return fmt.Errorf("%w (%s)", err, reason)
			}
			out := map[string]any{"sub": claims.Subject, "type": string(claims.Type)}
			if claims.ExpiresAt != nil {
				out["exp"] = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
			}
			printResult(out)
			return nil
		},
	}

	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a random signing secret for secret_key",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := crypto.GenerateSecret()
			if err != nil {
				return err
			}
			printResult(map[string]any{"secret_key": secret})
			return nil
		},
	}

	cmd.AddCommand(issueCmd, verifyCmd, secretCmd)
	return cmd
}

func localTokens(cmd *cobra.Command) (*auth.TokenService, error) {
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv("APP_SECRET_KEY")
	}
	if secret == "" {
		return nil, fmt.Errorf("a signing secret is required (--secret or APP_SECRET_KEY)")
	}
	return auth.NewTokenService(secret)
}

// --- audit ---

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Read and write the audit trail (admin)"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			result, err := newClient().get("/common/audit/events?limit=" + strconv.Itoa(limit))
			if err != nil {
				return err
			}
			events, _ := result["events"].([]any)
			printRows(events, "timestamp", "action", "actor", "target")
			return nil
		},
	}
	listCmd.Flags().Int("limit", 200, "Maximum number of events")

	recordCmd := &cobra.Command{
		Use:   "record <action> [key=value ...]",
		Short: "Record an audit event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta := map[string]any{}
			for _, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid key=value pair: %s", kv)
				}
				meta[k] = v
			}
			body := map[string]any{"action": args[0], "metadata": meta}
			if target, _ := cmd.Flags().GetString("target"); target != "" {
				body["target"] = target
			}
			result, err := newClient().post("/common/audit/events", body)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	recordCmd.Flags().String("target", "", "Target of the action")

	cmd.AddCommand(listCmd, recordCmd)
	return cmd
}

// --- logs ---

func logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show buffered server logs (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			level, _ := cmd.Flags().GetString("level")
			q := url.Values{"limit": {strconv.Itoa(limit)}}
			if level != "" {
				q.Set("level", level)
			}
			result, err := newClient().get("/common/logs?" + q.Encode())
			if err != nil {
				return err
			}
			entries, _ := result["logs"].([]any)
			printRows(entries, "level", "name", "message")
			return nil
		},
	}
	cmd.Flags().Int("limit", 200, "Maximum number of records")
	cmd.Flags().String("level", "", "Only records at this level")

	levelCmd := &cobra.Command{
		Use:   "level <LEVEL>",
		Short: "Change the server log level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newClient().post("/common/logs/level", map[string]any{"level": args[0]}); err != nil {
				return err
			}
			printSuccess("Success! Log level set to " + strings.ToUpper(args[0]))
			return nil
		},
	}

	cmd.AddCommand(levelCmd)
	return cmd
}

// --- metrics ---

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show request counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if prom, _ := cmd.Flags().GetBool("prometheus"); prom {
				text, err := client.getText("/common/metrics/prometheus")
				if err != nil {
					return err
				}
				fmt.Print(text)
				return nil
			}
			result, err := client.get("/common/metrics")
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().Bool("prometheus", false, "Print the text exposition format")
	return cmd
}
