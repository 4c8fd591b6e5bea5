package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/doronbehar/mail/internal/credential"
	"github.com/doronbehar/mail/internal/folder"
	"github.com/doronbehar/mail/internal/imap"
	"github.com/doronbehar/mail/internal/model"
	"github.com/doronbehar/mail/internal/service"
	"github.com/doronbehar/mail/internal/store"
	"github.com/doronbehar/mail/internal/sync"
)

const usage = `Usage: mailsync [flags] <command> [args]

Commands:
  accounts                    list configured accounts
  add <name> <email> <host> <port> <user>
                              add an account (password read from MAILSYNC_PASSWORD)
  remove <account-id>         remove an account and its sync state
  folders <account-id>        print the folder hierarchy
  sync <account-id> <folder>  run one incremental sync pass
  move <account-id> <src> <uid> <dest>
                              move a message between folders
  delete <account-id> <folder> <uid>
                              delete a message (trash-aware)
  test <account-id>           verify connectivity and credentials
`

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "Path to configuration file")
	user := flag.String("user", "local", "User whose accounts to operate on")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *configPath, *user, flag.Args()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, user string, args []string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	cipher, err := credential.Open()
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	provider := imap.NewProvider(imap.ProviderOptions{
		Timeout:         time.Duration(cfg.IMAP.TimeoutSec) * time.Second,
		DebugLog:        cfg.IMAP.DebugLog,
		ServerSideCache: cfg.Cache.ServerSideEnabled,
	}, cipher, st.Cache(), logger)
	defer provider.CloseAll()

	mapper := folder.NewMapper(logger)
	synchronizer := sync.NewSynchronizer(logger)
	translator := folder.NewTranslator(cfg.Locale)
	manager := service.NewMailManager(provider, mapper, synchronizer, translator, st, logger)
	accounts := service.NewAccountService(st, cipher, logger)

	ctx := context.Background()
	sess := service.NewSession(user)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "accounts":
		return listAccounts(ctx, accounts, sess)
	case "add":
		return addAccount(ctx, accounts, sess, rest)
	case "remove":
		return removeAccount(ctx, accounts, sess, rest)
	case "folders":
		return printFolders(ctx, manager, accounts, sess, rest)
	case "sync":
		return syncFolder(ctx, manager, accounts, sess, rest)
	case "move":
		return moveMessage(ctx, manager, accounts, sess, rest)
	case "delete":
		return deleteMessage(ctx, manager, accounts, sess, rest)
	case "test":
		return testAccount(ctx, manager, accounts, sess, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func listAccounts(ctx context.Context, svc *service.AccountService, sess *service.Session) error {
	accounts, err := svc.FindByUser(ctx, sess)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		fmt.Printf("%d\t%s\t%s\t%s:%d\n",
			a.ID, a.DisplayName(), a.Email, a.Inbound.Host, a.Inbound.Port)
	}
	return nil
}

func addAccount(ctx context.Context, svc *service.AccountService, sess *service.Session, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("add needs <name> <email> <host> <port> <user>")
	}
	port, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[3], err)
	}
	password := os.Getenv("MAILSYNC_PASSWORD")
	if password == "" {
		return fmt.Errorf("MAILSYNC_PASSWORD is not set")
	}

	account := &model.Account{
		Name:  args[0],
		Email: args[1],
		Inbound: model.ServerSettings{
			Host:     args[2],
			Port:     port,
			User:     args[4],
			Password: password,
		},
	}
	if err := svc.Create(ctx, sess, account); err != nil {
		return err
	}
	fmt.Printf("account %d added\n", account.ID)
	return nil
}

func removeAccount(ctx context.Context, svc *service.AccountService, sess *service.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("remove needs <account-id>")
	}
	id, err := parseAccountID(args[0])
	if err != nil {
		return err
	}
	return svc.Delete(ctx, sess, id)
}

func printFolders(ctx context.Context, manager *service.MailManager, svc *service.AccountService, sess *service.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("folders needs <account-id>")
	}
	account, err := findAccount(ctx, svc, sess, args[0])
	if err != nil {
		return err
	}

	roots, err := manager.GetFolders(ctx, account)
	if err != nil {
		return err
	}
	printTree(roots, 0)
	return nil
}

func printTree(folders []*model.Folder, depth int) {
	for _, f := range folders {
		for i := 0; i < depth; i++ {
			fmt.Print("  ")
		}
		fmt.Printf("%s", f.Name)
		if role := f.MainRole(); role != "" {
			fmt.Printf(" [%s]", role)
		}
		if f.Status.Total > 0 {
			fmt.Printf(" (%d messages, %d unseen)", f.Status.Total, f.Status.Unseen)
		}
		fmt.Println()
		printTree(f.Folders, depth+1)
	}
}

func syncFolder(ctx context.Context, manager *service.MailManager, svc *service.AccountService, sess *service.Session, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("sync needs <account-id> <folder>")
	}
	account, err := findAccount(ctx, svc, sess, args[0])
	if err != nil {
		return err
	}

	resp, err := manager.SyncMessages(ctx, account, sync.Request{
		Folder:      args[1],
		WantDetails: true,
	})
	if err != nil {
		return err
	}

	for _, msg := range resp.New {
		if msg.Details != nil {
			fmt.Printf("new\t%d\t%s\t%s\n", msg.UID, msg.Details.From, msg.Details.Subject)
		} else {
			fmt.Printf("new\t%d\n", msg.UID)
		}
	}
	for _, msg := range resp.Changed {
		fmt.Printf("changed\t%d\t%v\n", msg.UID, msg.Flags)
	}
	for _, uid := range resp.Vanished {
		fmt.Printf("vanished\t%d\n", uid)
	}
	fmt.Printf("token\t%s\n", resp.Token.String())
	return nil
}

func moveMessage(ctx context.Context, manager *service.MailManager, svc *service.AccountService, sess *service.Session, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("move needs <account-id> <src> <uid> <dest>")
	}
	account, err := findAccount(ctx, svc, sess, args[0])
	if err != nil {
		return err
	}
	uid, err := parseUID(args[2])
	if err != nil {
		return err
	}
	return manager.MoveMessage(ctx, account, args[1], uid, args[3])
}

func deleteMessage(ctx context.Context, manager *service.MailManager, svc *service.AccountService, sess *service.Session, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("delete needs <account-id> <folder> <uid>")
	}
	account, err := findAccount(ctx, svc, sess, args[0])
	if err != nil {
		return err
	}
	uid, err := parseUID(args[2])
	if err != nil {
		return err
	}
	return manager.DeleteMessage(ctx, account, args[1], uid)
}

func testAccount(ctx context.Context, manager *service.MailManager, svc *service.AccountService, sess *service.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("test needs <account-id>")
	}
	account, err := findAccount(ctx, svc, sess, args[0])
	if err != nil {
		return err
	}
	if err := manager.TestConnectivity(ctx, account); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func findAccount(ctx context.Context, svc *service.AccountService, sess *service.Session, arg string) (*model.Account, error) {
	id, err := parseAccountID(arg)
	if err != nil {
		return nil, err
	}
	return svc.Find(ctx, sess, id)
}

func parseAccountID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid account id %q: %w", arg, err)
	}
	return id, nil
}

func parseUID(arg string) (uint32, error) {
	uid, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uid %q: %w", arg, err)
	}
	return uint32(uid), nil
}
