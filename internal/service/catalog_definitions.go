package service

import "github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"

type paramDef struct {
	name        string
	label       string
	kind        models.InputKind
	group       models.ParamGroup
	family      models.InstrumentFamily
	choices     []string
	rankGroup   models.RankGroupName
	derivedFrom string
}

var (
	yesNo     = []string{"Y", "N"}
	yesNoPref = []string{"Y", "N", "P"}
	ccdChoice = []string{"Y", "N", "O1", "O2", "O3", "O4", "O5"}
)

func general(name, label string, kind models.InputKind, choices ...string) paramDef {
	return paramDef{name: name, label: label, kind: kind, group: models.GroupGeneral, choices: choices}
}

func grouped(group models.ParamGroup, name, label string, kind models.InputKind, choices ...string) paramDef {
	return paramDef{name: name, label: label, kind: kind, group: group, choices: choices}
}

func acis(name, label string, kind models.InputKind, choices ...string) paramDef {
	return paramDef{name: name, label: label, kind: kind, group: models.GroupACIS, family: models.FamilyACIS, choices: choices}
}

func hrc(name, label string, kind models.InputKind, choices ...string) paramDef {
	return paramDef{name: name, label: label, kind: kind, group: models.GroupHRC, family: models.FamilyHRC, choices: choices}
}

func ranked(group models.ParamGroup, rank models.RankGroupName, family models.InstrumentFamily, name, label string, kind models.InputKind, choices ...string) paramDef {
	return paramDef{name: name, label: label, kind: kind, group: group, family: family, choices: choices, rankGroup: rank}
}

func view(group models.ParamGroup, name, label, source string) paramDef {
	return paramDef{name: name, label: label, kind: models.InputFreeText, group: group, derivedFrom: source}
}

// parameterDefs lists every catalog parameter in display order.
var parameterDefs = []paramDef{
	grouped(models.GroupUnused, "obsid", "Obsid", models.InputHidden),
	grouped(models.GroupUnused, "seq_nbr", "Sequence Number", models.InputHidden),
	grouped(models.GroupUnused, "status", "Status", models.InputHidden),
	grouped(models.GroupUnused, "proposal_number", "Proposal Number", models.InputHidden),
	grouped(models.GroupUnused, "pi_name", "PI Name", models.InputHidden),
	grouped(models.GroupUnused, "observer", "Observer", models.InputHidden),
	grouped(models.GroupUnused, "approved_exposure_time", "Approved Exposure Time", models.InputHidden),
	grouped(models.GroupUnused, "rem_exp_time", "Remaining Exposure Time", models.InputHidden),

	general("targname", "Target Name", models.InputFreeText),
	general("instrument", "Instrument", models.InputChoice, models.InstrumentACISI, models.InstrumentACISS, models.InstrumentHRCI, models.InstrumentHRCS),
	general("grating", "Grating", models.InputChoice, "NONE", "HETG", "LETG"),
	general("type", "Type", models.InputChoice, "GO", "TOO", "GTO", "CAL", "DDT", "CAL_ER", "ARCHIVE", "CDFS"),
	general("ra", "RA", models.InputFreeText),
	general("dec", "Dec", models.InputFreeText),
	view(models.GroupGeneral, "ra_hms", "RA (HMS)", "ra"),
	view(models.GroupGeneral, "dec_dms", "Dec (DMS)", "dec"),
	general("y_det_offset", "Offset: Y", models.InputFreeText),
	general("z_det_offset", "Offset: Z", models.InputFreeText),
	general("trans_offset", "Z-Sim", models.InputFreeText),
	general("focus_offset", "Sim-Focus", models.InputFreeText),
	general("defocus", "Focus", models.InputFreeText),
	general("raster_scan", "Raster Scan", models.InputChoice, yesNo...),
	general("uninterrupt", "Uninterrupted Obs", models.InputChoice, yesNoPref...),
	general("extended_src", "Extended Source", models.InputChoice, yesNo...),
	general("obj_flag", "Solar System Object", models.InputChoice, "NO", "MT", "SS"),
	general("object", "Object", models.InputChoice, "NONE", "NEW", "COMET", "EARTH", "JUPITER", "MARS", "MOON", "NEPTUNE", "PLUTO", "SATURN", "URANUS", "VENUS"),
	general("photometry_flag", "Photometry", models.InputChoice, yesNo...),
	general("vmagnitude", "V Mag", models.InputFreeText),
	general("est_cnt_rate", "Count Rate", models.InputFreeText),
	general("forder_cnt_rate", "1st Order Rate", models.InputFreeText),

	grouped(models.GroupDither, "dither_flag", "Dither", models.InputChoice, yesNo...),
	grouped(models.GroupDither, "y_amp", "Y Amp (deg)", models.InputFreeText),
	grouped(models.GroupDither, "y_freq", "Y Freq (deg/sec)", models.InputFreeText),
	grouped(models.GroupDither, "y_phase", "Y Phase", models.InputFreeText),
	grouped(models.GroupDither, "z_amp", "Z Amp (deg)", models.InputFreeText),
	grouped(models.GroupDither, "z_freq", "Z Freq (deg/sec)", models.InputFreeText),
	grouped(models.GroupDither, "z_phase", "Z Phase", models.InputFreeText),
	view(models.GroupDither, "y_amp_asec", "Y Amp (arcsec)", "y_amp"),
	view(models.GroupDither, "y_freq_asec", "Y Freq (arcsec/sec)", "y_freq"),
	view(models.GroupDither, "z_amp_asec", "Z Amp (arcsec)", "z_amp"),
	view(models.GroupDither, "z_freq_asec", "Z Freq (arcsec/sec)", "z_freq"),

	grouped(models.GroupTime, "window_flag", "Window Constraint", models.InputChoice, yesNoPref...),
	grouped(models.GroupUnused, "time_ordr", "Time Window Rank", models.InputHidden),
	ranked(models.GroupTime, models.RankTimeWindow, models.FamilyAny, "window_constraint", "Window Constraint", models.InputChoice, "Y", "P"),
	ranked(models.GroupTime, models.RankTimeWindow, models.FamilyAny, "tstart", "Start", models.InputFreeText),
	ranked(models.GroupTime, models.RankTimeWindow, models.FamilyAny, "tstop", "Stop", models.InputFreeText),

	grouped(models.GroupRoll, "roll_flag", "Roll Constraint", models.InputChoice, yesNoPref...),
	grouped(models.GroupUnused, "roll_ordr", "Roll Rank", models.InputHidden),
	ranked(models.GroupRoll, models.RankRoll, models.FamilyAny, "roll_constraint", "Type of Constraint", models.InputChoice, "Y", "P"),
	ranked(models.GroupRoll, models.RankRoll, models.FamilyAny, "roll_180", "Roll180?", models.InputChoice, yesNo...),
	ranked(models.GroupRoll, models.RankRoll, models.FamilyAny, "roll", "Roll", models.InputFreeText),
	ranked(models.GroupRoll, models.RankRoll, models.FamilyAny, "roll_tolerance", "Roll Tolerance", models.InputFreeText),

	grouped(models.GroupOther, "constr_in_remarks", "Constraint in Remarks", models.InputChoice, yesNoPref...),
	grouped(models.GroupOther, "pointing_constraint", "Pointing Constraint", models.InputChoice, yesNo...),
	grouped(models.GroupOther, "phase_constraint_flag", "Phase Constraint", models.InputChoice, yesNoPref...),
	grouped(models.GroupOther, "phase_epoch", "Phase Epoch", models.InputFreeText),
	grouped(models.GroupOther, "phase_period", "Phase Period", models.InputFreeText),
	grouped(models.GroupOther, "phase_start", "Phase Start", models.InputFreeText),
	grouped(models.GroupOther, "phase_start_margin", "Phase Start Margin", models.InputFreeText),
	grouped(models.GroupOther, "phase_end", "Phase End", models.InputFreeText),
	grouped(models.GroupOther, "phase_end_margin", "Phase End Margin", models.InputFreeText),
	grouped(models.GroupOther, "group_id", "Group ID", models.InputFreeText),
	grouped(models.GroupOther, "monitor_flag", "Monitoring Observation", models.InputChoice, yesNo...),
	grouped(models.GroupOther, "pre_id", "Follows ObsID#", models.InputFreeText),
	grouped(models.GroupOther, "pre_min_lead", "Follows Min Int", models.InputFreeText),
	grouped(models.GroupOther, "pre_max_lead", "Follows Max Int", models.InputFreeText),
	grouped(models.GroupOther, "multitelescope", "Coordinated Observation", models.InputChoice, yesNoPref...),
	grouped(models.GroupOther, "observatories", "Observatories", models.InputFreeText),
	grouped(models.GroupOther, "multitelescope_interval", "Max Coordination Offset", models.InputFreeText),

	hrc("hrc_config", "HRC Config", models.InputFreeText),
	hrc("hrc_zero_block", "Zero Order Block", models.InputChoice, yesNo...),
	hrc("hrc_timing_mode", "Timing Mode", models.InputChoice, yesNo...),
	hrc("hrc_si_mode", "SI Mode", models.InputFreeText),

	acis("exp_mode", "ACIS Exposure Mode", models.InputChoice, "TE", "CC"),
	acis("bep_pack", "Event Telemetry Format", models.InputChoice, "F", "VF", "F+B", "G"),
	acis("frame_time", "Frame Time", models.InputFreeText),
	acis("most_efficient", "Most Efficient", models.InputChoice, yesNo...),
	acis("ccdi0_on", "I0", models.InputChoice, ccdChoice...),
	acis("ccdi1_on", "I1", models.InputChoice, ccdChoice...),
	acis("ccdi2_on", "I2", models.InputChoice, ccdChoice...),
	acis("ccdi3_on", "I3", models.InputChoice, ccdChoice...),
	acis("ccds0_on", "S0", models.InputChoice, ccdChoice...),
	acis("ccds1_on", "S1", models.InputChoice, ccdChoice...),
	acis("ccds2_on", "S2", models.InputChoice, ccdChoice...),
	acis("ccds3_on", "S3", models.InputChoice, ccdChoice...),
	acis("ccds4_on", "S4", models.InputChoice, ccdChoice...),
	acis("ccds5_on", "S5", models.InputChoice, ccdChoice...),
	acis("subarray", "Use Subarray", models.InputChoice, "NONE", "CUSTOM"),
	acis("subarray_start_row", "Subarray Start Row", models.InputFreeText),
	acis("subarray_row_count", "Subarray Row Count", models.InputFreeText),
	acis("duty_cycle", "Duty Cycle", models.InputChoice, yesNo...),
	acis("secondary_exp_count", "Number of Cycles", models.InputFreeText),
	acis("primary_exp_time", "Exposure Time", models.InputFreeText),
	acis("onchip_sum", "Onchip Summing", models.InputChoice, yesNo...),
	acis("onchip_row_count", "Onchip Row Count", models.InputFreeText),
	acis("onchip_column_count", "Onchip Column Count", models.InputFreeText),
	acis("eventfilter", "Energy Filter", models.InputChoice, yesNo...),
	acis("eventfilter_lower", "Lowest Energy", models.InputFreeText),
	acis("eventfilter_higher", "Energy Range", models.InputFreeText),
	acis("multiple_spectral_lines", "Multiple Spectral Lines", models.InputChoice, yesNo...),
	acis("spectra_max_count", "Spectra Max Count", models.InputFreeText),
	acis("spwindow_flag", "Window Filter", models.InputChoice, yesNo...),

	{name: "aciswin_open", label: "ACIS Window Editor Open", kind: models.InputHidden, group: models.GroupUnused, family: models.FamilyACIS},
	{name: "aciswin_ordr", label: "ACIS Window Rank", kind: models.InputHidden, group: models.GroupUnused, family: models.FamilyACIS},
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "chip", "Chip", models.InputChoice, "I0", "I1", "I2", "I3", "S0", "S1", "S2", "S3", "S4", "S5"),
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "start_row", "Start Row", models.InputFreeText),
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "start_column", "Start Column", models.InputFreeText),
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "height", "Height", models.InputFreeText),
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "width", "Width", models.InputFreeText),
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "lower_threshold", "Lowest Energy", models.InputFreeText),
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "pha_range", "Energy Range", models.InputFreeText),
	ranked(models.GroupACISWindow, models.RankACISWindow, models.FamilyACIS, "sample", "Sample Rate", models.InputFreeText),

	grouped(models.GroupRemarks, "remarks", "Remarks", models.InputFreeText),
	grouped(models.GroupRemarks, "comments", "Comments", models.InputFreeText),
}

// rankGroups describes the ranked groups and the scalars that govern them.
var rankGroups = map[models.RankGroupName]models.RankGroup{
	models.RankTimeWindow: {
		Name:     models.RankTimeWindow,
		Counter:  "time_ordr",
		Primary:  "window_constraint",
		Fields:   []string{"window_constraint", "tstart", "tstop"},
		OpenFlag: "window_flag",
	},
	models.RankRoll: {
		Name:     models.RankRoll,
		Counter:  "roll_ordr",
		Primary:  "roll_constraint",
		Fields:   []string{"roll_constraint", "roll_180", "roll", "roll_tolerance"},
		OpenFlag: "roll_flag",
	},
	models.RankACISWindow: {
		Name:      models.RankACISWindow,
		Counter:   "aciswin_ordr",
		Primary:   "chip",
		Fields:    []string{"chip", "start_row", "start_column", "height", "width", "lower_threshold", "pha_range", "sample"},
		OpenFlag:  "spwindow_flag",
		Companion: "aciswin_open",
	},
}

// RankGroupFor returns the ranked group definition by name.
func RankGroupFor(name models.RankGroupName) (models.RankGroup, bool) {
	g, ok := rankGroups[name]
	return g, ok
}

var rankCounters = func() map[string]models.RankGroupName {
	out := make(map[string]models.RankGroupName, len(rankGroups))
	for name, g := range rankGroups {
		out[g.Counter] = name
	}
	return out
}()

// columnsFor maps a parameter group onto the ledger columns its changes need.
func columnsFor(group models.ParamGroup) []models.SignoffColumn {
	switch group {
	case models.GroupACIS, models.GroupACISWindow:
		return []models.SignoffColumn{models.ColumnACIS, models.ColumnACISSI}
	case models.GroupHRC:
		return []models.SignoffColumn{models.ColumnHRCSI}
	case models.GroupUnused:
		return nil
	default:
		return []models.SignoffColumn{models.ColumnGeneral}
	}
}

// categoryFor maps a parameter group onto its change-summary block.
func categoryFor(group models.ParamGroup) models.ChangeCategory {
	switch group {
	case models.GroupACIS:
		return models.CategoryACIS
	case models.GroupACISWindow:
		return models.CategoryACISWindow
	default:
		return models.CategoryGeneral
	}
}
