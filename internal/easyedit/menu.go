package easyedit

import "math"

// Menu items
const (
	MenuTag         = "tag"
	MenuDelete      = "delete"
	MenuHistory     = "history"
	MenuCopy        = "copy"
	MenuCut         = "cut"
	MenuRelation    = "relation"
	MenuAppend      = "append"
	MenuJoin        = "join"
	MenuUnjoin      = "unjoin"
	MenuReverse     = "reverse"
	MenuSplit       = "split"
	MenuMerge       = "merge"
	MenuRestriction = "restriction"
	MenuRotate      = "rotate"
	MenuUndo        = "undo"
	MenuRevert      = "revert"
	MenuNewBug      = "new bug"
	MenuNewNode     = "new node"
	MenuNewWay      = "new way"
	MenuPaste       = "paste"
)

// RotateStep is the angle applied by one rotate menu action, clockwise on screen
const RotateStep = math.Pi / 2
