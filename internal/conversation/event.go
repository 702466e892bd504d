package conversation

// Event is one normalized user input.
type Event struct {
	UserID int64
	// Start is set for the /start command and forces the Start state.
	Start bool
	// Payload carries callback data or message text.
	Payload string
}

// Button is an inline keyboard button: a label and opaque callback data.
type Button struct {
	Label string
	Data  string
}

// Message is an outbound message. A non-empty Photo is sent as an image
// with Text as caption.
type Message struct {
	Text    string
	Photo   []byte
	Buttons [][]Button
	// ReplacePrevious asks the transport to delete the message whose button
	// triggered this event once the reply is delivered.
	ReplacePrevious bool
}

// Outcome is what a handled event produced.
type Outcome struct {
	Messages []Message
	Next     State
	// Ignored is set when no transition matched; nothing was persisted.
	Ignored bool
}
