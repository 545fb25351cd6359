package middlewares

// gin context keys. Plain strings because gin's Set/Get take string keys.
const (
	CtxRequestID = "request.id"
	CtxJobID     = "request.jobID"
)

// typed key for values carried on context.Context (not gin's map)
type ctxKey string

const KeyUserID ctxKey = "user_id"
