package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/oakley-grocery/backend/internal/domain"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func formatFlag(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// renderResolution prints the chosen product, or the shortlist when the
// item could not be resolved
func renderResolution(w io.Writer, result *domain.ResolutionResult) {
	if product := result.Product(); product != nil {
		fmt.Fprintf(w, "%s x%d -> [%d] %s (%s, %s)\n",
			result.GenericName, result.Quantity, product.Code, product.Name,
			formatPrice(product.Price), result.Source())
		return
	}

	candidates := result.Candidates()
	if len(candidates) == 0 {
		fmt.Fprintf(w, "%s x%d: no products found\n", result.GenericName, result.Quantity)
		return
	}

	fmt.Fprintf(w, "%s x%d: pick one of\n", result.GenericName, result.Quantity)
	t := newTable(w)
	t.AppendHeader(table.Row{"Score", "Code", "Name", "Brand", "Size", "Price", "Special"})
	for _, c := range candidates {
		t.AppendRow(table.Row{
			fmt.Sprintf("%.2f", c.Score), c.Code, c.Name, c.Brand, c.PackageSize,
			formatPrice(c.Price), formatFlag(c.OnSpecial),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()
}

// renderBatch prints one row per item
func renderBatch(w io.Writer, results []*domain.ResolutionResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Item", "Qty", "Status", "Code", "Product", "Price"})
	for _, r := range results {
		if r == nil {
			continue
		}
		if product := r.Product(); product != nil {
			t.AppendRow(table.Row{r.GenericName, r.Quantity, r.Source(), product.Code, product.Name, formatPrice(product.Price)})
			continue
		}
		t.AppendRow(table.Row{r.GenericName, r.Quantity, fmt.Sprintf("%d candidates", len(r.Candidates())), "", "", ""})
	}
	t.Render()
}

func renderPreferences(w io.Writer, prefs []domain.Preference) {
	if len(prefs) == 0 {
		fmt.Fprintln(w, "No preferences learned yet")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Item", "Code", "Product", "Brand", "Size", "Bought", "Last Price"})
	for _, p := range prefs {
		t.AppendRow(table.Row{p.GenericName, p.ProductCode, p.ProductName, p.Brand, p.PackageSize, p.PurchaseCount, formatPrice(p.LastPrice)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func renderProducts(w io.Writer, products []domain.CandidateProduct) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Code", "Name", "Brand", "Size", "Price", "Was", "Unit Price", "Available"})
	for _, p := range products {
		t.AppendRow(table.Row{p.Code, p.Name, p.Brand, p.PackageSize, formatPrice(p.Price), formatPrice(p.WasPrice), p.CupString, formatFlag(p.Available)})
	}
	t.Render()
}
