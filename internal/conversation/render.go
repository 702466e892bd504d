package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/storebot/core/telegram/callbacks"
	"github.com/m3rciful/storebot/internal/commerce"
)

func menuMessage(ctx context.Context, gw Gateway, greeting bool) (Message, error) {
	products, err := gw.ListProducts(ctx)
	if err != nil {
		return Message{}, err
	}
	shown := products
	if len(shown) > maxButtons-1 {
		// The cart button always fits.
		shown = shown[:maxButtons-1]
	}
	rows := make([][]Button, 0, len(shown)+1)
	for _, p := range shown {
		rows = append(rows, []Button{{Label: p.Title, Data: fmt.Sprint(p.ID)}})
	}
	rows = append(rows, []Button{{Label: "My cart", Data: ActionCart}})

	text := "Choose a product or open your cart."
	if greeting {
		text = "Hello! Choose a product."
	}
	if len(shown) < len(products) {
		text += fmt.Sprintf("\nShowing %d of %d products.", len(shown), len(products))
	}
	return Message{Text: text, Buttons: rows, ReplacePrevious: !greeting}, nil
}

func productMessage(ctx context.Context, gw Gateway, id int64) (Message, error) {
	p, err := gw.GetProductDetail(ctx, id, true)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		Text: productCaption(p),
		Buttons: [][]Button{
			{{Label: "Add to cart", Data: callbacks.Encode(ActionAddToCart, fmt.Sprint(p.ID))}},
			{{Label: "My cart", Data: ActionCart}},
			{{Label: "Back", Data: ActionCancel}},
		},
		ReplacePrevious: true,
	}
	if p.Image != nil {
		img, err := gw.FetchImage(ctx, *p.Image)
		if err != nil {
			return Message{}, err
		}
		msg.Photo = img
	}
	return msg, nil
}

func productCaption(p commerce.Product) string {
	var b strings.Builder
	b.WriteString(p.Title)
	if p.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Description)
	}
	b.WriteString("\n\nPrice per kg: ")
	b.WriteString(p.Price.StringFixed(2))
	return truncate(b.String(), maxCaption)
}

func cartMessage(lines []commerce.CartLine) Message {
	rows := make([][]Button, 0, len(lines)+2)
	var text string
	if len(lines) == 0 {
		text = "Your cart is empty."
	} else {
		total := "\nTotal: " + commerce.Total(lines).StringFixed(2)
		text = truncate(commerce.FormatCartLines(lines), maxText-utf8.RuneCountInString(total)) + total
		removable := lines
		if len(removable) > maxButtons-2 {
			removable = removable[:maxButtons-2]
		}
		for _, l := range removable {
			rows = append(rows, []Button{{
				Label: "Remove " + l.ProductTitle,
				Data:  callbacks.Encode(ActionRemove, fmt.Sprint(l.ID)),
			}})
		}
		rows = append(rows, []Button{{Label: "Checkout", Data: ActionPayment}})
	}
	rows = append(rows, []Button{{Label: "Back to menu", Data: ActionCancel}})
	return Message{Text: text, Buttons: rows, ReplacePrevious: true}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
