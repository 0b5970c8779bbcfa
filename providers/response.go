package providers

// Content is a sealed interface for the kinds of content a response carries.
// Only text is produced today.
type Content interface {
	isContent()
}

// Response is what a provider extracts from one API reply.
type Response struct {
	Content Content
	Usage   *Usage
}

func (r Response) String() string {
	if textContent, ok := r.Content.(Text); ok {
		return textContent.Value
	}
	return ""
}

// TotalTokens returns the reported total, or 0 when the API sent no usage.
func (r *Response) TotalTokens() int64 {
	if r == nil || r.Usage == nil {
		return 0
	}
	return r.Usage.TotalTokens
}

type Text struct {
	Value string
}

func (t Text) isContent() {}

// NewTextResponse is a shorthand used by providers and test doubles.
func NewTextResponse(text string, usage *Usage) *Response {
	return &Response{Content: Text{Value: text}, Usage: usage}
}

// Usage is the token accounting reported by the API.
type Usage struct {
	InputTokens       int64
	CachedInputTokens int64
	OutputTokens      int64
	TotalTokens       int64
}

// NewUsage builds a Usage. When the API does not report a total, it is the
// sum of input and output tokens.
func NewUsage(inputTokens, cachedInputTokens, outputTokens, totalTokens int64) *Usage {
	if totalTokens <= 0 {
		totalTokens = inputTokens + outputTokens
	}
	return &Usage{
		InputTokens:       inputTokens,
		CachedInputTokens: cachedInputTokens,
		OutputTokens:      outputTokens,
		TotalTokens:       totalTokens,
	}
}
