package prompts

import (
	_ "embed"
)

//go:embed vision.txt
var VisionPrompt string

//go:embed checkout.txt
var CheckoutPrompt string
