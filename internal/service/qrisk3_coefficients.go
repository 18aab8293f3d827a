package service

// QRISK3-2017 coefficient tables (Hippisley-Cox et al., BMJ 2017;357:j2099).
// These are the published model; changing any constant changes the model.

// qriskContinuous holds one value per transformed continuous covariate.
type qriskContinuous struct {
	age1, age2 float64
	bmi1, bmi2 float64
	ratio      float64
	sbp        float64
	sbps5      float64
	town       float64
}

// qriskFlags holds one coefficient per boolean covariate.
type qriskFlags struct {
	af, atypicalAntipsychotics, corticosteroids, impotence float64
	migraine, ra, renal, semi, sle, treatedHyp           float64
	type1, type2, fhCVD                                 float64
}

// qriskInteractions holds the coefficients of one age transform times each covariate.
type qriskInteractions struct {
	smoking                                        [5]float64 // index 0 (non-smoker) is the reference
	af, corticosteroids, impotence, migraine, renal float64
	sle, treatedHyp, type1, type2                  float64
	bmi1, bmi2, fhCVD, sbp, town                   float64
}

// qriskModel is one sex-specific QRISK3 procedure.
type qriskModel struct {
	survivor   float64 // baseline survival at 10 years
	ageExp1    float64 // fractional polynomial powers of age/10
	ageExp2    float64
	ethnicity  [10]float64 // index 0 unused, 1 is the reference
	smoking    [5]float64
	centre     qriskContinuous
	continuous qriskContinuous
	flags      qriskFlags
	age1x      qriskInteractions
	age2x      qriskInteractions
}

var qriskFemale = qriskModel{
	survivor: 0.988876402378082,
	ageExp1:  -2,
	ageExp2:  1,
	ethnicity: [10]float64{
		0,
		0,
		0.2804031433299542500000000,
		0.5629899414207539800000000,
		0.2959000085111651600000000,
		0.0727853798779825450000000,
		-0.1707213550885731700000000,
		-0.3937104331487497100000000,
		-0.3263249528353027200000000,
		-0.1712705688324178400000000,
	},
	smoking: [5]float64{
		0,
		0.1338683378654626200000000,
		0.5620085801243853700000000,
		0.6674959337750254700000000,
		0.8494817764483084700000000,
	},
	centre: qriskContinuous{
		age1:  0.053274843841791,
		age2:  4.332503318786621,
		bmi1:  0.154946178197861,
		bmi2:  0.144462317228317,
		ratio: 3.476326465606690,
		sbp:   123.130012512207030,
		sbps5: 9.002537727355957,
		town:  0.392308831214905,
	},
	continuous: qriskContinuous{
		age1:  -8.1388109247726188000000000,
		age2:  0.7973337668969909800000000,
		bmi1:  0.2923609227546005200000000,
		bmi2:  -4.1513300213837665000000000,
		ratio: 0.1533803582080255400000000,
		sbp:   0.0131314884071034240000000,
		sbps5: 0.0078894541014586095000000,
		town:  0.0772237905885901080000000,
	},
	flags: qriskFlags{
		af:                     1.5923354969269663000000000,
		atypicalAntipsychotics: 0.2523764207011555700000000,
		corticosteroids:        0.5952072530460185100000000,
		migraine:               0.3012672608703450000000000,
		ra:                     0.2136480343518194200000000,
		renal:                  0.6519456949384583300000000,
		semi:                   0.1255530805882017800000000,
		sle:                    0.7588093865426769300000000,
		treatedHyp:             0.5093159368342300400000000,
		type1:                  1.7267977510537347000000000,
		type2:                  1.0688773244615468000000000,
		fhCVD:                  0.4544531902089621300000000,
	},
	age1x: qriskInteractions{
		smoking: [5]float64{
			0,
			-4.7057161785851891000000000,
			-2.7430383403573337000000000,
			-0.8660808882939218200000000,
			0.9024156236971064800000000,
		},
		af:              19.9380348895465610000000000,
		corticosteroids: -0.9840804523593628100000000,
		migraine:        1.7634979587872999000000000,
		renal:           -3.5874047731694114000000000,
		sle:             19.6903037386382920000000000,
		treatedHyp:      11.8728097339218120000000000,
		type1:           -1.2444332714320747000000000,
		type2:           6.8652342000009599000000000,
		bmi1:            23.8026234121417420000000000,
		bmi2:            -71.1849476920870070000000000,
		fhCVD:           0.9946780794043512700000000,
		sbp:             0.0341318423386154850000000,
		town:            -1.0301180802035639000000000,
	},
	age2x: qriskInteractions{
		smoking: [5]float64{
			0,
			-0.0755892446431930260000000,
			-0.1195119287486707400000000,
			-0.1036630639757192300000000,
			-0.1399185359171838900000000,
		},
		af:              -0.0761826510111625050000000,
		corticosteroids: -0.1200536494674247200000000,
		migraine:        -0.0655869178986998590000000,
		renal:           -0.2268887308644250700000000,
		sle:             0.0773479496790162730000000,
		treatedHyp:      0.0009685782358817443600000,
		type1:           -0.2872406462448894900000000,
		type2:           -0.0971122525906954890000000,
		bmi1:            0.5236995893366442900000000,
		bmi2:            0.0457441901223237590000000,
		fhCVD:           -0.0768850516984230380000000,
		sbp:             -0.0015082501423272358000000,
		town:            -0.0315934146749623290000000,
	},
}

var qriskMale = qriskModel{
	survivor: 0.977268040180206,
	ageExp1:  -1,
	ageExp2:  3,
	ethnicity: [10]float64{
		0,
		0,
		0.2771924876030827900000000,
		0.4744636071493126800000000,
		0.5296172991968937100000000,
		0.0351001591862990170000000,
		-0.3580789966932791900000000,
		-0.4005648523216514000000000,
		-0.4152279288983017300000000,
		-0.2632134813474996700000000,
	},
	smoking: [5]float64{
		0,
		0.1912822286338898300000000,
		0.5524158819264555200000000,
		0.6383505302750607200000000,
		0.7898381988185801900000000,
	},
	centre: qriskContinuous{
		age1:  0.234766781330109,
		age2:  77.284080505371094,
		bmi1:  0.149176135659218,
		bmi2:  0.141913309693336,
		ratio: 4.300998687744141,
		sbp:   128.571578979492190,
		sbps5: 8.756621360778809,
		town:  0.526304900646210,
	},
	continuous: qriskContinuous{
		age1:  -17.8397816660055750000000000,
		age2:  0.0022964880605765492000000,
		bmi1:  2.4562776660536358000000000,
		bmi2:  -8.3011122314711354000000000,
		ratio: 0.1734019685632711100000000,
		sbp:   0.0129101265425533050000000,
		sbps5: 0.0102519142912904560000000,
		town:  0.0332682012772872950000000,
	},
	flags: qriskFlags{
		af:                     0.8820923692805465700000000,
		atypicalAntipsychotics: 0.1304687985517351300000000,
		corticosteroids:        0.4548539975044554300000000,
		impotence:              0.2225185908670538300000000,
		migraine:               0.2558417807415991300000000,
		ra:                     0.2097065801395656700000000,
		renal:                  0.7185326128827438400000000,
		semi:                   0.1213303988204716400000000,
		sle:                    0.4401572174457522000000000,
		treatedHyp:             0.5165987108269547400000000,
		type1:                  1.2343425521675175000000000,
		type2:                  0.8594207143093222100000000,
		fhCVD:                  0.5405546900939015600000000,
	},
	age1x: qriskInteractions{
		smoking: [5]float64{
			0,
			-0.2101113393351634600000000,
			0.7526867644750319100000000,
			0.9931588755640579100000000,
			2.1331163414389076000000000,
		},
		af:              3.4896675530623207000000000,
		corticosteroids: 1.1708133653489108000000000,
		impotence:       -1.5064009857454310000000000,
		migraine:        2.3491159871402441000000000,
		renal:           -0.5065671632722369400000000,
		treatedHyp:      6.5114581098532671000000000,
		type1:           5.3379864878006531000000000,
		type2:           3.6461817406221311000000000,
		bmi1:            31.0049529560338860000000000,
		bmi2:            -111.2915718439164300000000000,
		fhCVD:           2.7808628508531887000000000,
		sbp:             0.0188585244698658530000000,
		town:            -0.1007554870063731000000000,
	},
	age2x: qriskInteractions{
		smoking: [5]float64{
			0,
			-0.0004985487027532612100000,
			-0.0007987563331738541400000,
			-0.0008370618426625129600000,
			-0.0007840031915563728900000,
		},
		af:              -0.0003499560834063604900000,
		corticosteroids: -0.0002496045095297166000000,
		impotence:       -0.0011058218441227373000000,
		migraine:        0.0001989644604147863100000,
		renal:           -0.0018325930166498813000000,
		treatedHyp:      0.0006383805310416501300000,
		type1:           0.0006409780808752897000000,
		type2:           -0.0002469569558886831500000,
		bmi1:            0.0050380102356322029000000,
		bmi2:            -0.0130744830025243190000000,
		fhCVD:           -0.0002479180990739603700000,
		sbp:             -0.0000127187419158845700000,
		town:            -0.0000932996423232728880000,
	},
}
