package conversation

import (
	"fmt"
)

const noCodeFeedback = "No code block was found in your last message, so nothing was executed (%s). " +
	"Reply with a single fenced code block tagged with its language, or give the final answer followed by TERMINATE."

const deniedFeedback = "exit"

func noCodeMessage(parseError string) string {
	if parseError == "" {
		parseError = "no code block"
	}
	return fmt.Sprintf(noCodeFeedback, parseError)
}
