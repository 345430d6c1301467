// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The screen has two panels:
//  1. Search : a [textinput.Model] feeding a [tasks.SearchSession], with the grouped dropdown below it
//  2. Downloads : a [list.Model] of the latest [tasks.StatusPoller] snapshot
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Poller and search updates flow through their latest-wins channels; each update re-arms a command that waits for the next one.
//
// tab moves focus between the panels. In the downloads panel j/k move, r retries the selected download and ctrl+r refreshes.
// In the search panel the arrow keys move the highlight, enter selects or submits and esc closes the dropdown.
// Failed user actions show a one-shot notice line; background poll failures only mark the snapshot as stale.
package ui
