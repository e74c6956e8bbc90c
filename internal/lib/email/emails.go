package email

import (
	"context"
	"fmt"
)

// SaleNotification carries the fields shown in a sale notification.
type SaleNotification struct {
	SalesID         int64
	SalesPersonalID int64
	CustomerID      int64
	ProductID       int64
	Quantity        int64
}

func (n SaleNotification) data() map[string]string {
	return map[string]string{
		"SalesID":         fmt.Sprint(n.SalesID),
		"SalesPersonalID": fmt.Sprint(n.SalesPersonalID),
		"CustomerID":      fmt.Sprint(n.CustomerID),
		"ProductID":       fmt.Sprint(n.ProductID),
		"Quantity":        fmt.Sprint(n.Quantity),
	}
}

// SendSaleNotification tells to that a sale was recorded.
func (c *Client) SendSaleNotification(ctx context.Context, to string, sale SaleNotification) error {
	return c.SendEmail(
		ctx,
		to,
		fmt.Sprintf("Sale #%d recorded", sale.SalesID),
		TemplateSaleRecorded,
		sale.data(),
	)
}
