package email

// Template names an embedded HTML template under templates/.
type Template string

const (
	// TemplateSaleRecorded is sent when a sale is created.
	TemplateSaleRecorded Template = "sale_recorded"
)
