package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"expenses/internal/backend"
	"expenses/internal/core"
	"expenses/internal/log"
)

type demoExpense struct {
	category    string
	amount      string
	daysAgo     int
	description string
}

type demoUser struct {
	user     core.NewUser
	expenses []demoExpense
}

// demoData spreads each user's spend over the current and previous months
// so every report has rows to show.
var demoData = []demoUser{
	{
		user: core.NewUser{Name: "Shoaib Akhtar", Email: "shoaib@example.com", Status: core.StatusActive},
		expenses: []demoExpense{
			{"Food & Dining", "250.00", 1, "Dinner at restaurant"},
			{"Transportation", "500.00", 2, "Fuel"},
			{"Shopping", "1500.00", 3, "Online shopping"},
			{"Entertainment", "300.00", 5, "Movie tickets"},
			{"Bills & Utilities", "2000.00", 7, "Electricity bill"},
			{"Food & Dining", "450.00", 1, "Lunch with team"},
			{"Healthcare", "800.00", 10, "Medicine"},
			{"Food & Dining", "350.00", 35, "Restaurant"},
			{"Transportation", "600.00", 40, "Taxi"},
			{"Shopping", "2000.00", 45, "Electronics"},
			{"Food & Dining", "400.00", 65, "Groceries"},
			{"Bills & Utilities", "1800.00", 70, "Internet bill"},
			{"Travel", "5000.00", 75, "Weekend trip"},
			{"Food & Dining", "300.00", 95, "Food"},
			{"Shopping", "1200.00", 100, "Clothes"},
		},
	},
	{
		user: core.NewUser{Name: "Rahul Sharma", Email: "rahul@example.com", Status: core.StatusActive},
		expenses: []demoExpense{
			{"Food & Dining", "180.00", 1, "Breakfast"},
			{"Transportation", "350.00", 3, "Metro pass"},
			{"Education", "15000.00", 5, "Course fee"},
			{"Entertainment", "200.00", 8, "Concert ticket"},
			{"Food & Dining", "500.00", 38, "Party"},
			{"Healthcare", "1200.00", 42, "Doctor visit"},
			{"Shopping", "3000.00", 68, "Gadgets"},
			{"Bills & Utilities", "1500.00", 72, "Phone bill"},
		},
	},
	{
		user: core.NewUser{Name: "Priya Patel", Email: "priya@example.com", Status: core.StatusActive},
		expenses: []demoExpense{
			{"Personal Care", "500.00", 2, "Spa"},
			{"Food & Dining", "600.00", 4, "Fine dining"},
			{"Shopping", "4000.00", 6, "Jewelry"},
			{"Travel", "8000.00", 12, "Vacation"},
			{"Food & Dining", "800.00", 36, "Restaurant"},
			{"Entertainment", "1000.00", 44, "Events"},
		},
	},
	{
		user: core.NewUser{Name: "Amit Kumar", Email: "amit@example.com", Status: core.StatusActive},
		expenses: []demoExpense{
			{"Food & Dining", "120.00", 1, "Street food"},
			{"Transportation", "80.00", 1, "Bus fare"},
			{"Others", "200.00", 5, "Misc items"},
			{"Bills & Utilities", "900.00", 40, "Rent share"},
			{"Food & Dining", "300.00", 45, "Groceries"},
		},
	},
	{
		user: core.NewUser{Name: "Neha Singh", Email: "neha@example.com", Status: core.StatusInactive},
	},
}

// seedStore is the part of backend.Store that seeding writes through.
type seedStore interface {
	backend.ReferenceReader
	backend.UserWriter
	CreateExpense(ctx context.Context, ne core.NewExpense) (core.Expense, error)
}

type seedResult struct {
	Users, SkippedUsers, Expenses int
}

// seedDemoData inserts the demo users and their expenses dated relative to
// today. A user whose email is already registered is skipped together with
// its expenses, so running it twice changes nothing.
func seedDemoData(ctx context.Context, store seedStore, today core.Date) (seedResult, error) {
	var res seedResult

	categories, err := store.ListCategories(ctx)
	if err != nil {
		return res, fmt.Errorf("list categories: %w", err)
	}
	categoryIDs := make(map[string]int64, len(categories))
	for _, c := range categories {
		categoryIDs[c.Name] = c.ID
	}

	for _, du := range demoData {
		u, err := store.CreateUser(ctx, du.user)
		if errors.Is(err, core.ErrEmailTaken) {
			res.SkippedUsers++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("create user %s: %w", du.user.Email, err)
		}
		res.Users++

		for _, de := range du.expenses {
			categoryID, ok := categoryIDs[de.category]
			if !ok {
				return res, fmt.Errorf("seed expense %q: %w", de.description, core.ErrCategoryNotFound)
			}
			description := de.description
			_, err := store.CreateExpense(ctx, core.NewExpense{
				UserID:      u.ID,
				CategoryID:  categoryID,
				Amount:      core.MustAmount(de.amount),
				Date:        core.DateOf(today.AddDate(0, 0, -de.daysAgo)),
				Description: &description,
			})
			if err != nil {
				return res, fmt.Errorf("seed expense %q: %w", de.description, err)
			}
			res.Expenses++
		}
	}
	return res, nil
}

func newSeedCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo users and expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireSQLite("seed"); err != nil {
				return err
			}
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := seedDemoData(cmd.Context(), store, core.DateOf(time.Now().UTC()))
			if err != nil {
				return err
			}
			rt.logger.Info("Seed completed",
				log.FieldComponent, log.ComponentStorage,
				"users", res.Users,
				"skipped_users", res.SkippedUsers,
				"expenses", res.Expenses)
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d added, %d already present\nexpenses: %d added\n",
				res.Users, res.SkippedUsers, res.Expenses)
			return nil
		},
	}
}
