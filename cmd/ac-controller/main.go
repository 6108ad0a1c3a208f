// Command ac-controller learns infrared remote signals and replays them to
// keep a room between two temperature thresholds. It is driven by a push
// button, MQTT commands and a small HTTP status page.
package main

func main() {
	Execute()
}
