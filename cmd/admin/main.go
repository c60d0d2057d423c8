/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"exchange-settlement-go/internal/common"
	"exchange-settlement-go/internal/config"
	"exchange-settlement-go/internal/exchange"
	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/store"

	"go.uber.org/zap"
)

// The admin binary is the operator console: list and inspect exchanges,
// force-complete or cancel them, and review user activity, all directly
// against the store.
func main() {
	var (
		listExchanges = flag.Bool("list", false, "list all exchanges")
		showStats     = flag.Bool("stats", false, "show dashboard statistics")
		topUsers      = flag.Int("top", 0, "show the top N users by volume")
		listUsers     = flag.Bool("users", false, "list users with activity counts")
		approveId     = flag.String("approve", "", "mark the exchange with this id completed")
		cancelId      = flag.String("cancel", "", "cancel the exchange with this id")
		deleteId      = flag.String("delete", "", "delete the exchange with this id")
		grantAdminId  = flag.String("grant-admin", "", "grant the admin role to this user id")
	)
	flag.Parse()

	logger, cleanup := common.InitializeLogger()
	defer cleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	exchanges := exchange.NewService(services.Store, services.Rates, services.Notifier, services.Hub)

	switch {
	case *listExchanges:
		err = printExchanges(ctx, services)
	case *showStats:
		err = printStats(ctx, services)
	case *topUsers > 0:
		err = printTopUsers(ctx, services, *topUsers)
	case *listUsers:
		err = printUsers(ctx, services)
	case *approveId != "":
		err = setStatus(ctx, exchanges, *approveId, models.StatusCompleted)
	case *cancelId != "":
		err = setStatus(ctx, exchanges, *cancelId, models.StatusCancelled)
	case *deleteId != "":
		err = deleteExchange(ctx, exchanges, *deleteId)
	case *grantAdminId != "":
		err = grantAdmin(ctx, services, *grantAdminId)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("Command failed", zap.Error(err))
	}
}

func printExchanges(ctx context.Context, services *common.Services) error {
	exchanges, err := services.Store.GetAdminExchanges(ctx)
	if err != nil {
		return err
	}

	common.PrintHeader(fmt.Sprintf("EXCHANGES (%d)", len(exchanges)), common.WideWidth)
	for i, ex := range exchanges {
		owner := ex.Username
		if owner == "" {
			owner = "anonymous"
		}
		prefix := common.BoxPrefix(i == len(exchanges)-1)
		fmt.Printf("%s%s  %s  %s %s -> %s %s  [%s]  %s  %s\n",
			prefix,
			common.TruncateId(ex.Id),
			ex.ExchangeCode,
			ex.SendAmount.String(), ex.FromCurrency,
			ex.ReceiveAmount.String(), ex.ToCurrency,
			ex.Status,
			owner,
			ex.CreatedAt.Format(time.RFC3339))
	}
	common.PrintFooter(fmt.Sprintf("Total: %d", len(exchanges)), common.WideWidth)
	return nil
}

func printStats(ctx context.Context, services *common.Services) error {
	stats, err := services.Store.GetDashboardStats(ctx)
	if err != nil {
		return err
	}

	common.PrintHeader("DASHBOARD", common.DefaultWidth)
	fmt.Printf("│  Total exchanges:     %d\n", stats.TotalExchanges)
	fmt.Printf("│  Pending:             %d\n", stats.PendingExchanges)
	fmt.Printf("│  Completed:           %d\n", stats.CompletedExchanges)
	fmt.Printf("│  Cancelled:           %d\n", stats.CancelledExchanges)
	common.PrintBoxSeparator(common.DefaultWidth)
	fmt.Printf("│  Completed volume:    $%s\n", stats.CompletedVolumeUsd.StringFixed(2))
	fmt.Printf("└  Unique users:        %d\n", stats.UniqueUsers)
	return nil
}

func printTopUsers(ctx context.Context, services *common.Services, limit int) error {
	users, err := services.Store.GetTopUsersByVolume(ctx, limit)
	if err != nil {
		return err
	}

	common.PrintHeader(fmt.Sprintf("TOP %d USERS BY VOLUME", limit), common.DefaultWidth)
	for i, user := range users {
		fmt.Printf("%s%2d. %-24s $%s\n",
			common.BoxPrefix(i == len(users)-1),
			i+1,
			user.Username,
			user.TotalVolume.StringFixed(2))
	}
	return nil
}

func printUsers(ctx context.Context, services *common.Services) error {
	users, err := services.Store.GetUsersWithDetails(ctx)
	if err != nil {
		return err
	}

	common.PrintHeader(fmt.Sprintf("USERS (%d)", len(users)), common.WideWidth)
	for i, user := range users {
		fmt.Printf("%s%s  %-24s %-32s role=%-6s exchanges=%d\n",
			common.BoxPrefix(i == len(users)-1),
			common.TruncateId(user.Id),
			user.Username,
			user.Email,
			user.Role,
			user.ExchangeCount)
	}
	return nil
}

func setStatus(ctx context.Context, exchanges *exchange.Service, id string, to models.ExchangeStatus) error {
	updated, err := exchanges.AdminSetStatus(ctx, id, to, "console")
	if err != nil {
		return err
	}
	fmt.Printf("Exchange %s (%s) is now %s\n", common.TruncateId(updated.Id), updated.ExchangeCode, updated.Status)
	return nil
}

func deleteExchange(ctx context.Context, exchanges *exchange.Service, id string) error {
	if err := exchanges.AdminDelete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Exchange %s deleted\n", common.TruncateId(id))
	return nil
}

func grantAdmin(ctx context.Context, services *common.Services, userId string) error {
	profile, err := services.Store.GetProfile(ctx, userId)
	if err != nil {
		return err
	}
	err = services.Store.UpsertProfile(ctx, store.UpsertProfileParams{
		Id:        profile.Id,
		Username:  profile.Username,
		Email:     profile.Email,
		AvatarUrl: profile.AvatarUrl,
		Role:      "admin",
	})
	if err != nil {
		return err
	}
	fmt.Printf("User %s (%s) is now an administrator\n", profile.Username, common.TruncateId(profile.Id))
	return nil
}
