// Package autoload registers every built-in LLM provider factory through
// blank imports. Importing this package once (typically from main) makes all
// providers available to llm.NewFromConfig.
package autoload

import (
	_ "pricepulse/pkg/llm/gemini"
	_ "pricepulse/pkg/llm/ollama"
	_ "pricepulse/pkg/llm/openailm"
)
