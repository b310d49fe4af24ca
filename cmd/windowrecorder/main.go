package main

import "github.com/bryanchriswhite/WindowRecorder/cmd/windowrecorder/commands"

func main() {
	commands.Execute()
}
