// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through a single download:
//  1. [InputView] : Enter a video URL
//  2. [FormatView] : Pick mp4, webm or mp3
//  3. [DownloadView] : Follow the pipeline's progress updates
//  4. [ResultView] : Show the saved file or the classified failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the download engine, which never blocks on a slow renderer.
//
// Views that start with a URL or format already known are skipped, so the same model backs
// both the interactive command and a plain single-URL download.
package ui
