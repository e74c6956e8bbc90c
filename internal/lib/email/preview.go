package email

// PreviewData holds sample values for every template, used to render previews.
var PreviewData = map[Template]map[string]string{
	TemplateSaleRecorded: SaleNotification{
		SalesID:         42,
		SalesPersonalID: 1,
		CustomerID:      7,
		ProductID:       3,
		Quantity:        2,
	}.data(),
}

// Preview renders templateName with its sample data.
func Preview(templateName Template) (string, error) {
	return Render(templateName, PreviewData[templateName])
}
