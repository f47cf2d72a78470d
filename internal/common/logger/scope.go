package logger

// Field names shared by every log line that concerns a tech pack.
const (
	FieldStage      = "stage"
	FieldProductID  = "productId"
	FieldRevisionID = "revisionId"
)

// ForStage scopes l to one stage call for a product.
func ForStage(l Logger, stage, productID string) Logger {
	return l.WithFields(scopeFields(map[string]string{
		FieldStage:     stage,
		FieldProductID: productID,
	}))
}

// ForRevision scopes l to a product revision.
func ForRevision(l Logger, productID, revisionID string) Logger {
	return l.WithFields(scopeFields(map[string]string{
		FieldProductID:  productID,
		FieldRevisionID: revisionID,
	}))
}

// empty identifiers are left off rather than logged as ""
func scopeFields(ids map[string]string) map[string]interface{} {
	fields := make(map[string]interface{}, len(ids))
	for k, v := range ids {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
