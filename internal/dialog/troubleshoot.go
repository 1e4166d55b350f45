package dialog

import "github.com/rgaros/fixline/internal/speech"

// Safe self-service checks a caller can do without tools or opening the
// machine up. HVAC deliberately has none; a photo or a technician is the
// right path there.
var troubleshootSteps = map[speech.Appliance][]string{
	speech.ApplianceWasher: {
		"Make sure the door or lid is fully closed and latched",
		"Check that the water supply valves behind the washer are open all the way",
		"Make sure the drain hose isn't kinked or pushed too far into the standpipe",
		"Remove a few items if the drum is packed tight, and run a rinse and spin cycle",
	},
	speech.ApplianceDryer: {
		"Clean the lint filter completely",
		"Check that the vent hose behind the dryer isn't crushed or clogged",
		"Make sure the door closes firmly and the start button is held for a second or two",
		"Try a timed dry cycle on high heat with a small load",
	},
	speech.ApplianceRefrigerator: {
		"Check that the temperature dial hasn't been bumped to a warmer setting",
		"Make sure the door seals close flush with no gaps, and nothing is blocking the door",
		"Clear any food blocking the vents inside the fridge and freezer",
		"Pull the fridge out a little so air can circulate behind it",
	},
	speech.ApplianceDishwasher: {
		"Clean the filter at the bottom of the tub and remove any food debris",
		"Make sure the spray arms spin freely and the holes aren't clogged",
		"Check that the door latches fully and the child lock isn't on",
		"Run a hot water cycle with dishwasher cleaner or a cup of white vinegar",
	},
	speech.ApplianceOven: {
		"Check that the clock and timer are set, some ovens won't start without them",
		"Make sure the oven isn't in delayed start or sabbath mode",
		"If it's gas, confirm other gas appliances in the home are working",
		"Try a bake cycle at 350 degrees and listen for the igniter or element coming on",
	},
}

// troubleshootingSteps returns the flattened step list for an appliance,
// or nil when there's nothing safe to suggest over the phone.
func troubleshootingSteps(appliance speech.Appliance) []string {
	return troubleshootSteps[appliance]
}
