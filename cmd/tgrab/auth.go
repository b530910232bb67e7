package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tgrab/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage message-source API credentials",
	Long: `Manage stored message-source API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Environment variables (read-only fallback:
    TGRAB_API_ID, TGRAB_API_HASH, TGRAB_SESSION)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store API credentials securely",
	Long: `Store message-source API credentials in the system keychain.

You will be prompted for:
  - API ID (numeric, from my.telegram.org)
  - API hash (hidden as you type)
  - Session name (optional, press Enter for default)`,
	Args: cobra.NoArgs,
	Run:  runLogin,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credentials",
	Long:  `Show the stored credential set with the API hash masked.`,
	Run:   runStatus,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Run:   runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager := auth.NewManager()
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("API ID: ")
	idInput, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read API ID:", err)
		os.Exit(1)
	}
	apiID, err := strconv.Atoi(strings.TrimSpace(idInput))
	if err != nil || apiID <= 0 {
		fmt.Fprintln(os.Stderr, "API ID must be a positive number")
		os.Exit(1)
	}

	fmt.Print("API hash: ")
	apiHash, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read API hash:", err)
		os.Exit(1)
	}
	if len(apiHash) < 16 {
		fmt.Fprintln(os.Stderr, "that does not look like a valid API hash")
		os.Exit(1)
	}

	fmt.Print("Session name (press Enter for default): ")
	sessionInput, _ := reader.ReadString('\n')
	session := strings.TrimSpace(sessionInput)

	creds := &auth.Credentials{
		APIID:   apiID,
		APIHash: apiHash,
		Session: session,
	}
	if err := manager.Store(creds); err != nil {
		fmt.Fprintln(os.Stderr, "failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Println("credentials stored")
}

func runStatus(cmd *cobra.Command, args []string) {
	creds, err := auth.NewManager().Retrieve("")
	if err != nil {
		fmt.Println("no credentials stored")
		fmt.Println("run 'tgrab auth login' to store credentials, or set")
		fmt.Println("TGRAB_API_ID and TGRAB_API_HASH in the environment")
		return
	}

	sanitized := auth.Sanitize(creds)
	fmt.Printf("Name:       %s\n", sanitized.Name)
	fmt.Printf("API ID:     %d\n", sanitized.APIID)
	fmt.Printf("API hash:   %s\n", sanitized.APIHash)
	if sanitized.Session != "" {
		fmt.Printf("Session:    %s\n", sanitized.Session)
	}
	if !sanitized.LastModified.IsZero() {
		fmt.Printf("Modified:   %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	if err := auth.NewManager().Delete(""); err != nil {
		fmt.Fprintln(os.Stderr, "failed to remove credentials:", err)
		os.Exit(1)
	}
	fmt.Println("credentials removed")
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
