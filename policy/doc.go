// Package policy decides whether a proposed code block needs a human decision
// before it runs. The default is to ask for every block.
package policy
