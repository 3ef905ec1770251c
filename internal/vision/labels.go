package vision

// Class lists for each classifier, in training order. Prediction indices map
// directly into these slices, so the order must match the trained checkpoints.

var nailClasses = []string{
	"Acral Lentiginous Melanoma", "Healthy Nail", "Onychogryphosis", "blue finger", "clubbing", "pitting",
}

var skinClasses = []string{
	"Acne", "Eczema", "Melanoma", "Psoriasis", "Basal Cell Carcinoma", "Dermatitis",
	"Vitiligo", "Rosacea", "Hives", "Seborrheic Keratosis", "Warts", "Herpes",
	"Impetigo", "Cellulitis", "Ringworm", "Scabies", "Age Spots", "Moles",
	"Chickenpox", "Shingles", "Cold Sores", "Normal",
}

var oralClasses = []string{
	"Caries", "Calculus", "Gingivitis", "Tooth Discoloration", "Ulcers", "Hypodontia",
}

var eyeClasses = []string{
	"Cataract", "Conjunctivitis", "Eyelid", "Normal", "Uveitis",
}

var boneClasses = []string{
	"Not Fractured", "Fractured",
}

// Chest checkpoints exist with and without the trailing Hernia class, so both
// lists are kept and the loader picks one per checkpoint.

var chestClasses13 = []string{
	"Atelectasis", "Cardiomegaly", "Effusion", "Infiltration", "Mass", "Nodule",
	"Pneumonia", "Pneumothorax", "Consolidation", "Edema", "Emphysema",
	"Fibrosis", "Pleural_Thickening",
}

var chestClasses14 = []string{
	"Atelectasis", "Cardiomegaly", "Effusion", "Infiltration", "Mass", "Nodule",
	"Pneumonia", "Pneumothorax", "Consolidation", "Edema", "Emphysema",
	"Fibrosis", "Pleural_Thickening", "Hernia",
}
