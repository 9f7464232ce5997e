package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/hermosa/pos-api/internal/sales"
)

// RenderReceipt formats a sale as the subject and HTML body of a receipt
// email. Rendering happens at checkout time so the delivery worker never
// needs access to the in-memory sale history.
func RenderReceipt(rec sales.Record) (subject, body string) {
	subject = fmt.Sprintf("Your receipt from %s", rec.StoreName)

	var b strings.Builder
	b.WriteString("<h1>" + html.EscapeString(rec.StoreName) + "</h1>")
	if rec.CustomerName != "" {
		b.WriteString("<p>Thank you, " + html.EscapeString(rec.CustomerName) + "!</p>")
	}
	b.WriteString("<p>" + rec.Date.Format("2 Jan 2006 15:04") + "</p>")
	b.WriteString("<table>")
	b.WriteString("<tr><th>Item</th><th>Qty</th><th>Price</th></tr>")
	for _, item := range rec.Items {
		qty := item.Quantity.String()
		if item.UnitLabel != "" {
			qty += " " + html.EscapeString(item.UnitLabel)
		}
		b.WriteString("<tr><td>" + html.EscapeString(item.ProductName) + "</td>")
		b.WriteString("<td>" + qty + "</td>")
		b.WriteString("<td>" + item.Price.StringFixed(2) + "</td></tr>")
		if item.Discount != nil {
			b.WriteString("<tr><td colspan=\"2\">discount</td><td>-" + item.Discount.Amount.StringFixed(2) + "</td></tr>")
		}
	}
	b.WriteString("</table>")
	b.WriteString("<p>Subtotal: " + rec.Subtotal.StringFixed(2) + "</p>")
	if rec.ItemDiscounts.IsPositive() {
		b.WriteString("<p>Item discounts: -" + rec.ItemDiscounts.StringFixed(2) + "</p>")
	}
	if rec.OrderDiscount != nil {
		b.WriteString("<p>Order discount: -" + rec.OrderDiscount.Amount.StringFixed(2) + "</p>")
	}
	b.WriteString("<p>VAT: " + rec.TotalVAT.StringFixed(2) + "</p>")
	b.WriteString("<p><strong>Total: " + rec.Total.StringFixed(2) + "</strong></p>")
	b.WriteString("<p>Sale " + rec.ID.String() + "</p>")
	return subject, b.String()
}
