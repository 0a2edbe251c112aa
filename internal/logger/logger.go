// Package logger provides a small tag-prefixed console logger used by the
// ingestion worker and its collaborators.
package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBold   = "\033[1m"
)

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + colorReset
}

func line(level, color, tag, msg string) {
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n", paint(colorBold, ts), paint(color, level), paint(colorBold, "["+tag+"]"), msg)
}

// Info logs a neutral operational message under tag.
func Info(tag, msg string) { line("INFO", colorCyan, tag, msg) }

// Success logs a completed, favourable outcome under tag.
func Success(tag, msg string) { line(" OK ", colorGreen, tag, msg) }

// Warn logs a degraded-but-continuing condition under tag.
func Warn(tag, msg string) { line("WARN", colorYellow, tag, msg) }

// Error logs a failed operation under tag.
func Error(tag, msg string) { line("ERR ", colorRed, tag, msg) }

// Section prints a labeled divider, used to separate ingestion cycle phases.
func Section(name string) {
	fmt.Fprintf(os.Stdout, "\n%s %s\n", paint(colorBold, "──"), paint(colorBold, name))
}

// Stats prints a single key/value pair, formatting numeric values for humans.
func Stats(key string, value interface{}) {
	fmt.Fprintf(os.Stdout, "  %s: %s\n", key, humanizeValue(value))
}

func humanizeValue(value interface{}) string {
	switch v := value.(type) {
	case int:
		return humanize.Comma(int64(v))
	case int64:
		return humanize.Comma(v)
	case time.Duration:
		return v.String()
	case time.Time:
		return humanize.Time(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Banner prints a startup banner naming the running version.
func Banner(version string) {
	label := version
	if label == "" {
		label = "dev"
	}
	fmt.Fprintf(os.Stdout, "%s\n", paint(colorBold, "SERPRadio "+label))
}
