// Package ui implements the interactive terminal views using bubbletea's Elm architecture.
//
//  1. [UploadModel] : submits four volumes and follows the job, with one progress bar per processing phase
//  2. [HistoryModel] : browses completed reports and opens one
//
// Both models implement the standard Init/Update/View pattern and receive messages through the [Msg] union type.
// Progress updates and notices arrive on channels fed by the job controller so the UI never blocks it.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, s, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
