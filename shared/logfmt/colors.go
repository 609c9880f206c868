/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package logfmt

import "github.com/muesli/termenv"

// Color aliases termenv's color interface so callers configuring a
// StyleConfig never need to import termenv directly.
type Color = termenv.Color

// Named ANSI colors used by the default style and available to callers
// building their own StyleConfig.
const (
	ANSIBlack         = termenv.ANSIBlack
	ANSIRed           = termenv.ANSIRed
	ANSIGreen         = termenv.ANSIGreen
	ANSIYellow        = termenv.ANSIYellow
	ANSIBlue          = termenv.ANSIBlue
	ANSIMagenta       = termenv.ANSIMagenta
	ANSICyan          = termenv.ANSICyan
	ANSIWhite         = termenv.ANSIWhite
	ANSIBrightBlack   = termenv.ANSIBrightBlack
	ANSIBrightRed     = termenv.ANSIBrightRed
	ANSIBrightGreen   = termenv.ANSIBrightGreen
	ANSIBrightYellow  = termenv.ANSIBrightYellow
	ANSIBrightBlue    = termenv.ANSIBrightBlue
	ANSIBrightMagenta = termenv.ANSIBrightMagenta
	ANSIBrightCyan    = termenv.ANSIBrightCyan
	ANSIBrightWhite   = termenv.ANSIBrightWhite
)
