package main

import (
	eradio "github.com/toksikk/eradio/internal/core"
)

func main() {
	eradio.StartERadio()
}
