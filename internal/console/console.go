// Package console colors the severity tags of scenario status lines.
package console

import "github.com/fatih/color"

var (
	errorTag   = color.New(color.FgRed, color.Bold).SprintFunc()
	warningTag = color.New(color.FgYellow).SprintFunc()
	successTag = color.New(color.FgGreen).SprintFunc()
)

// Error prefixes msg with a red ERROR tag.
func Error(msg string) string {
	return errorTag("ERROR") + " " + msg
}

// Pending prefixes msg with a yellow tag naming the action in progress.
func Pending(action, msg string) string {
	return warningTag(action) + " " + msg
}

// Done prefixes msg with a green tag naming the completed action.
func Done(action, msg string) string {
	return successTag(action) + " " + msg
}
