package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	caserepo "github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-litigation-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-litigation-go/pkg/utilities"
)

// migrate creates the users and litigation_cases tables and exits.
func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	sqlxDB, err := database.ConnectX(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlxDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := userrepo.NewUserRepo(sqlxDB).EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}
	if err := caserepo.NewCaseRepo(sqlxDB).EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure cases table: %v", err)
	}
	sugar.Info("schema up to date")
}
