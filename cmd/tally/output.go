package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// cents formats a cent amount as dollars.
func cents(v int64) string {
	return fmt.Sprintf("$%d.%02d", v/100, v%100)
}

func printFact(f *model.FactEvent) {
	fmt.Printf("ID:          %s\n", ui.RenderAccent(f.ID))
	fmt.Printf("Occurred At: %s\n", f.OccurredAt.Format(time.RFC3339))
	fmt.Printf("Customer:    %s\n", f.CustomerID)
	fmt.Printf("Item:        %s\n", f.ItemID)
	fmt.Printf("Quantity:    %d\n", f.Quantity)
	fmt.Printf("Amount:      %s\n", cents(f.AmountCents))
	if f.Actor != "" {
		fmt.Printf("Actor:       %s\n", f.Actor)
	}
}

func printRollup(r *model.RollupRow) {
	fmt.Printf("Family:      %s\n", r.Family)
	fmt.Printf("Key:         %s\n", ui.RenderAccent(string(r.Key)))
	fmt.Printf("Count:       %d\n", r.Measures.Count)
	if r.Measures.Quantity > 0 {
		fmt.Printf("Quantity:    %d\n", r.Measures.Quantity)
	}
	fmt.Printf("Total:       %s\n", cents(r.Measures.TotalCents))
	if r.Measures.MaxCents > 0 {
		fmt.Printf("Max Ticket:  %s\n", cents(r.Measures.MaxCents))
	}
	if !r.Measures.LastAt.IsZero() {
		fmt.Printf("Last At:     %s\n", r.Measures.LastAt.Format(time.RFC3339))
	}
	if !r.UpdatedAt.IsZero() {
		fmt.Printf("Updated At:  %s\n", ui.RenderMuted(r.UpdatedAt.Format(time.RFC3339)))
	}
}

func printRollupTable(rows []*model.RollupRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCOUNT\tTOTAL\tMAX\tLAST AT")
	for _, r := range rows {
		last := ""
		if !r.Measures.LastAt.IsZero() {
			last = r.Measures.LastAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			r.Key, r.Measures.Count, cents(r.Measures.TotalCents), cents(r.Measures.MaxCents), last)
	}
	_ = w.Flush()
}

func printPartitionTable(partitions []*model.Partition) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tSTATE\tOBJECT KEY")
	for _, p := range partitions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"), p.State, p.ObjectKey)
	}
	_ = w.Flush()
}

func printAuditTable(entries []*model.AuditEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAT\tSUBJECT\tACTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			e.ID, e.At.Format("2006-01-02 15:04:05"), e.Subject, e.Action)
	}
	_ = w.Flush()
}
