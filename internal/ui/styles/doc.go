// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the palette and shared Lip Gloss styles of the
conversation browser.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Status helpers always pair a color with an ASCII indicator
([OK], [X], [!], [i]) so state is readable without color.
*/
package styles
