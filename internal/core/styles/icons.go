package styles

var (
	IconVisited   = "✔"
	IconSkipped   = "»"
	IconUnvisited = "○"
	IconNext      = "▶"
	IconDot       = "•"
)
