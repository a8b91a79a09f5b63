// Package autoload registers every built-in channel factory through blank
// imports, mirroring the provider autoload under pkg/llm.
package autoload

import (
	_ "pricepulse/pkg/channels/web"
)
