//go:build ignore
// +build ignore

// Renders sample report charts to status.png and categories.png.
package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/bot"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

func main() {
	status, err := bot.GenerateStatusChart(map[models.ExpenseStatus]int{
		models.ExpenseStatusPending:  7,
		models.ExpenseStatusApproved: 23,
		models.ExpenseStatusRejected: 3,
	})
	if err != nil {
		fail(err)
	}

	categories, err := bot.GenerateCategoryChart([]models.Expense{
		{ConvertedAmount: decimal.NewFromFloat(850.00), Category: "Travel - Airfare", Status: models.ExpenseStatusApproved},
		{ConvertedAmount: decimal.NewFromFloat(420.40), Category: "Travel - Lodging", Status: models.ExpenseStatusPending},
		{ConvertedAmount: decimal.NewFromFloat(130.50), Category: "Meals & Entertainment", Status: models.ExpenseStatusApproved},
		{ConvertedAmount: decimal.NewFromFloat(60.00), Category: "Office Supplies", Status: models.ExpenseStatusApproved},
		{ConvertedAmount: decimal.NewFromFloat(199.00), Category: "Software & Subscriptions", Status: models.ExpenseStatusPending},
	}, "January 2026")
	if err != nil {
		fail(err)
	}

	for name, data := range map[string][]byte{"status.png": status, "categories.png": categories} {
		if err := os.WriteFile(name, data, 0o600); err != nil {
			fail(err)
		}
		fmt.Printf("✓ Created %s\n", name)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
