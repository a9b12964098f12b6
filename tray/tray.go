package tray

import (
	"log"

	"github.com/getlantern/systray"
	"github.com/normen/mooerctl/config"
	"github.com/skratchdot/open-golang/open"
)

// Run shows the tray icon and blocks until Quit is chosen. Pedal events
// read from events update the status line.
func Run(events <-chan interface{}, onQuit func()) {
	systray.Run(func() { onReady(events) }, onQuit)
}

func onReady(events <-chan interface{}) {
	systray.SetTitle("Mooer")
	systray.SetTooltip("Mooer GE-200")
	mStatus := systray.AddMenuItem("Not connected", "Pedal status")
	mStatus.Disable()
	systray.AddSeparator()
	mConfig := systray.AddMenuItem("Open Config", "Open the config file")
	mQuit := systray.AddMenuItem("Quit", "Quit mooerctl")
	status := &Status{Index: -1}
	go func() {
		for {
			select {
			case e := <-events:
				if status.Apply(e) {
					mStatus.SetTitle(status.String())
				}
			case <-mConfig.ClickedCh:
				if err := open.Run(config.GetConfigFilePath()); err != nil {
					log.Print(err)
				}
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func Quit() {
	systray.Quit()
}
