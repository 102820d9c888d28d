// Package downloader drives the external media downloader (yt-dlp) through go-ytdlp.
//
// # Invocation
//
// A [ToolLocator] finds a working way to launch the tool by probing an ordered list of
// candidate commands with --version. The first success is cached on the locator, which is
// constructed once and shared by every [Invoker]. In development the configured local path
// is used without probing.
//
// Callers describe a run as a [ytdlp.Command] builder. [Invoker.Run] clones it, adds the
// request headers and hands it to an [Executor] under a timeout derived from the caller's
// context, so cancelling a request kills the child process. Failures come back as
// [shared.CommandError] values carrying the tool's stderr and exit code.
//
// # Metadata
//
// [InfoFetcher] asks the tool for a single JSON metadata document and maps the extracted
// info to [models.VideoInfo].
//
// # Strategies
//
// A [Strategy] is one format selector plus post-processing options. [StrategiesFor] returns
// the ordered list for a requested format. [StrategyRunner] tries them strictly in order
// with a fixed pause between failures and reports the last error once every strategy has
// failed.
package downloader
