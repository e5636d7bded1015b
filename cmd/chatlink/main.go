package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chatlink/internal/auth"
	"chatlink/internal/config"
	"chatlink/internal/guard"
	"chatlink/internal/logger"
	"chatlink/internal/notify"
	"chatlink/internal/realtime"
	"chatlink/internal/rest"
	"chatlink/internal/store"
	"chatlink/internal/tokenstore"
)

var version = "dev"

// app is the assembled client: one state store, one REST client, one auth
// session and one realtime session sharing them.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	state   *store.Store
	auth    *auth.Service
	session *realtime.Session
	guard   *guard.Guard
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Logger)

	tokens, err := tokenstore.Open(cfg.TokenDB)
	if err != nil {
		return nil, err
	}

	state := store.New()
	client := rest.NewClient(cfg.Server, cfg.AuthBase, log)
	notifier := notify.NewLogNotifier(log)

	authSvc := auth.NewService(client, tokens, state, notifier, log)
	session := realtime.NewSession(
		realtime.Config{Host: cfg.WSHost, Port: cfg.WSPort, Secure: cfg.Secure()},
		client, tokens, state, notifier,
		&realtime.LogLauncher{Logger: log},
		log,
	)

	return &app{
		cfg:     cfg,
		logger:  log,
		state:   state,
		auth:    authSvc,
		session: session,
		guard:   guard.New(authSvc, state, log),
	}, nil
}

func main() {
	var configPath string
	var a *app

	root := &cobra.Command{
		Use:           "chatlink",
		Short:         "Headless chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			var err error
			a, err = buildApp(configPath)
			return err
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(loginCmd(&a))
	root.AddCommand(registerCmd(&a))
	root.AddCommand(logoutCmd(&a))
	root.AddCommand(whoamiCmd(&a))
	root.AddCommand(runCmd(&a))
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loginCmd(a **app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := (*a).auth.Login(cmd.Context(), email, password)
			if !result.Success {
				return fmt.Errorf("login failed: %s", result.ErrorMessage)
			}
			user := (*a).state.CurrentUser()
			fmt.Printf("Logged in as %s %s <%s>\n", user.FirstName, user.LastName, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func registerCmd(a **app) *cobra.Command {
	var input auth.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.ConfirmPassword == "" {
				input.ConfirmPassword = input.Password
			}
			result := (*a).auth.Register(cmd.Context(), input)
			if !result.Success {
				return fmt.Errorf("registration failed: %s", result.ErrorMessage)
			}
			user := (*a).state.CurrentUser()
			fmt.Printf("Registered as %s %s <%s>\n", user.FirstName, user.LastName, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&input.Email, "email", "", "account email")
	cmd.Flags().StringVar(&input.Password, "password", "", "account password")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			(*a).auth.Logout(cmd.Context())
			fmt.Println("Logged out")
			return nil
		},
	}
}

func whoamiCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			(*a).auth.GetCurrentUser(cmd.Context())
			user := (*a).state.CurrentUser()
			if user.Email == "" {
				return fmt.Errorf("not signed in")
			}
			fmt.Printf("%s %s <%s> (id %s)\n", user.FirstName, user.LastName, user.Email, user.UserID)
			return nil
		},
	}
}

func runCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat server and stay online until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cl := *a
			if target := cl.guard.Resolve(ctx, "/chat"); target == guard.LoginRoute {
				return fmt.Errorf("not signed in, run `chatlink login` first")
			}
			if err := cl.session.Connect(ctx); err != nil {
				return err
			}
			cl.session.GetHistoryMessages(ctx)

			<-ctx.Done()
			cl.session.Disconnect()
			cl.logger.Info("shutting down")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("chatlink", version)
		},
	}
}
