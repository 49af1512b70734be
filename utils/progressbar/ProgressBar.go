// Package progressbar prints training progress bars to the terminal
// window.
package progressbar

import (
	"fmt"
	"strings"
	"time"
)

// ProgressBar implements a concurrent progress bar. Increment and the
// redraw loop run in their own goroutines, so the bar never blocks the
// training loop that drives it.
type ProgressBar struct {
	// width is the number of characters between the bar's end caps
	width float64

	// maxProgress is the number of Increment() calls that bring the
	// bar to 100%.
	maxProgress float64

	// currentProgress counts the Increment() calls made so far
	currentProgress float64

	// incrementEvent carries the progress at each Increment() call to
	// the redraw loop.
	incrementEvent chan float64

	closeEvent chan struct{}
	closed     bool

	updateEvery       time.Duration
	updateAtIncrement bool
}

// NewProgressBar returns a new progress bar that is width characters
// wide and reaches 100% after max Increment() calls. The bar redraws
// every updateEvery, and additionally at every Increment() call when
// updateAtIncrement is set.
func NewProgressBar(width, max int, updateEvery time.Duration,
	updateAtIncrement bool) *ProgressBar {
	return &ProgressBar{
		width:             float64(width),
		maxProgress:       float64(max),
		currentProgress:   0,
		incrementEvent:    make(chan float64),
		closeEvent:        make(chan struct{}),
		closed:            false,
		updateEvery:       updateEvery,
		updateAtIncrement: updateAtIncrement,
	}
}

// Increment advances the internal progress counter. Call it once per
// completed iteration.
func (p *ProgressBar) Increment() {
	go func() {
		if p.currentProgress < p.maxProgress && !p.closed {
			p.incrementEvent <- p.currentProgress
			p.currentProgress++
		}
	}()
}

// Close stops the redraw loop and releases the bar's resources. The
// bar must not be closed twice.
func (pbar *ProgressBar) Close() {
	if pbar.closed {
		panic("close: close on closed progress bar")
	}
	close(pbar.closeEvent)
	pbar.closed = true
	fmt.Println() // Jump to the line below the bar
}

// Display starts drawing the progress bar. It should only be called
// once.
func (pbar *ProgressBar) Display() {
	go func() {
		currentProgress := pbar.currentProgress
		maxProgress := pbar.maxProgress
		width := pbar.width

		updateEvery := pbar.updateEvery
		tick := time.NewTicker(updateEvery)
		updateAtIncrement := pbar.updateAtIncrement

		var elapsedTime time.Duration = 0 * time.Second

		var bar strings.Builder

		for {
			select {
			// Redraw on Increment() when configured to
			case currentProgress = <-pbar.incrementEvent:
				if !updateAtIncrement {
					continue
				}

			// Periodic redraw
			case <-tick.C:
				elapsedTime += updateEvery

			case <-pbar.closeEvent:
				close(pbar.incrementEvent)
				tick.Stop()
				return

			default:
				continue
			}

			bar.Reset()
			bar.Write([]byte("|"))

			currentProg := currentProgress / maxProgress * width
			for i := 0.0; i < currentProg; i++ {
				bar.Write([]byte("█"))
			}
			for i := currentProg; i < width; i++ {
				bar.Write([]byte(" "))
			}
			bar.Write([]byte(fmt.Sprintf("| [%.2f%v | elapsed: %v]",
				currentProgress/maxProgress*100, "%",
				elapsedTime)))

			fmt.Printf("\n\033[1A\033[K%v", bar.String())
		}
	}()
}
