package vocabulary

// Default tables for plant biology mining. Declaration order matters:
// lookups are first-match-wins.

var conditionTable = []Category{
	{ID: "salt_stress", Synonyms: []string{"salt stress", "salt", "NaCl", "salinity", "sodium chloride", "saline", "ionic stress"}},
	{ID: "drought", Synonyms: []string{"drought", "water deficit", "water stress", "dehydration", "osmotic stress"}},
	{ID: "cold", Synonyms: []string{"cold stress", "cold", "low temperature", "chilling", "freezing", "frost"}},
	{ID: "heat", Synonyms: []string{"heat stress", "heat", "high temperature", "thermal stress", "elevated temperature"}},
	{ID: "uv", Synonyms: []string{"UV", "UV-B", "UV-A", "ultraviolet", "UV radiation", "light stress"}},
	{ID: "oxidative", Synonyms: []string{"oxidative stress", "H2O2", "hydrogen peroxide", "ROS", "reactive oxygen"}},
	{ID: "heavy_metal", Synonyms: []string{"heavy metal", "cadmium", "lead", "mercury", "aluminum", "metal toxicity"}},
	{ID: "flooding", Synonyms: []string{"flooding", "waterlogging", "submergence", "hypoxia", "anoxia"}},
	{ID: "nutrient_deficiency", Synonyms: []string{"nutrient deficiency", "nitrogen", "phosphorus", "potassium", "iron", "starvation"}},
	{ID: "ph_stress", Synonyms: []string{"pH stress", "acidic", "alkaline", "low pH", "high pH"}},
	{ID: "pathogen", Synonyms: []string{"pathogen", "infection", "disease", "bacterial", "fungal", "viral", "infected"}},
	{ID: "herbivory", Synonyms: []string{"herbivory", "insect", "pest", "aphid", "caterpillar", "feeding"}},
	{ID: "elicitor", Synonyms: []string{"elicitor", "PAMP", "MAMP", "flagellin", "chitin", "immune"}},
	{ID: "auxin", Synonyms: []string{"auxin", "IAA", "indole acetic acid", "2,4-D"}},
	{ID: "cytokinin", Synonyms: []string{"cytokinin", "CK", "6-BA", "kinetin"}},
	{ID: "gibberellin", Synonyms: []string{"gibberellin", "GA", "GA3"}},
	{ID: "abscisic_acid", Synonyms: []string{"abscisic acid", "ABA"}},
	{ID: "ethylene", Synonyms: []string{"ethylene", "ACC", "ethylene treatment"}},
	{ID: "jasmonic_acid", Synonyms: []string{"jasmonic acid", "JA", "jasmonate", "MeJA"}},
	{ID: "salicylic_acid", Synonyms: []string{"salicylic acid", "SA", "salicylate"}},
	{ID: "brassinosteroid", Synonyms: []string{"brassinosteroid", "BR", "brassinolide"}},
	{ID: "flowering", Synonyms: []string{"flowering", "floral", "flower development", "photoperiod"}},
	{ID: "germination", Synonyms: []string{"germination", "seed germination", "imbibition"}},
	{ID: "senescence", Synonyms: []string{"senescence", "aging", "leaf senescence"}},
	{ID: "fruit_ripening", Synonyms: []string{"fruit ripening", "ripening", "maturation"}},
	{ID: "root_development", Synonyms: []string{"root development", "lateral root", "root hair", "root growth"}},
	{ID: "chemical_treatment", Synonyms: []string{"chemical treatment", "compound", "inhibitor", "chemical"}},
	{ID: "light", Synonyms: []string{"light", "dark", "photoperiod", "shade", "blue light", "red light"}},
	{ID: "circadian", Synonyms: []string{"circadian", "diurnal", "clock", "rhythm"}},
}

var experimentTable = []Category{
	{ID: "rna_seq", Synonyms: []string{"RNA-seq", "RNAseq", "RNA seq", "transcriptome", "transcriptomic", "transcriptomics"}},
	{ID: "single_cell_rna", Synonyms: []string{"single-cell", "scRNA-seq", "single cell RNA-seq", "droplet-based", "10x Genomics"}},
	{ID: "microarray", Synonyms: []string{"microarray", "gene chip", "expression array", "Affymetrix", "Agilent"}},
	{ID: "small_rna", Synonyms: []string{"small RNA", "miRNA", "sRNA", "microRNA", "siRNA"}},
	{ID: "wgs", Synonyms: []string{"whole genome sequencing", "WGS", "genome sequencing", "complete genome", "de novo"}},
	{ID: "resequencing", Synonyms: []string{"resequencing", "variant calling", "SNP", "mutation", "GWAS"}},
	{ID: "targeted_sequencing", Synonyms: []string{"targeted sequencing", "amplicon", "panel sequencing", "targeted"}},
	{ID: "ddrad", Synonyms: []string{"ddRAD", "RAD-seq", "GBS", "genotyping by sequencing"}},
	{ID: "chip_seq", Synonyms: []string{"ChIP-seq", "ChIPseq", "ChIP seq", "chromatin immunoprecipitation"}},
	{ID: "atac_seq", Synonyms: []string{"ATAC-seq", "ATACseq", "ATAC seq", "chromatin accessibility"}},
	{ID: "bisulfite_seq", Synonyms: []string{"bisulfite", "WGBS", "methylation", "BS-seq", "methylome", "DNA methylation"}},
	{ID: "dnase_seq", Synonyms: []string{"DNase-seq", "DNase hypersensitivity", "DHS"}},
	{ID: "mnase_seq", Synonyms: []string{"MNase-seq", "nucleosome", "nucleosome positioning"}},
	{ID: "proteomics", Synonyms: []string{"proteomics", "mass spectrometry", "LC-MS", "protein", "peptide", "iTRAQ", "TMT"}},
	{ID: "phosphoproteomics", Synonyms: []string{"phosphoproteomics", "phosphorylation", "PTM"}},
	{ID: "hi_c", Synonyms: []string{"Hi-C", "chromatin conformation", "3C", "chromosome conformation", "3D genome"}},
	{ID: "clip_seq", Synonyms: []string{"CLIP-seq", "CLIP", "RNA-protein interaction", "RIP"}},
	{ID: "ribosome_profiling", Synonyms: []string{"ribosome profiling", "Ribo-seq", "translation", "translat"}},
	{ID: "degradome", Synonyms: []string{"degradome", "PARE", "degradome-seq"}},
	{ID: "chia_pet", Synonyms: []string{"ChIA-PET", "chromatin interaction"}},
}

var methodTable = []Category{
	{ID: "rna_seq", Synonyms: []string{"RNA", "sequencing", "library", "reads", "transcript", "cDNA", "RNA-seq"}},
	{ID: "single_cell_rna", Synonyms: []string{"single-cell", "scRNA", "droplet", "10x", "cell type"}},
	{ID: "microarray", Synonyms: []string{"microarray", "hybridization", "probe", "Affymetrix", "Agilent"}},
	{ID: "small_rna", Synonyms: []string{"small RNA", "miRNA", "microRNA", "sRNA", "siRNA"}},
	{ID: "wgs", Synonyms: []string{"genome", "variant", "SNP", "mutation", "coverage", "assembly", "sequencing"}},
	{ID: "resequencing", Synonyms: []string{"resequencing", "variant calling", "genotype", "polymorphism"}},
	{ID: "targeted_sequencing", Synonyms: []string{"amplicon", "targeted", "panel", "capture"}},
	{ID: "ddrad", Synonyms: []string{"RAD-seq", "GBS", "ddRAD", "restriction site"}},
	{ID: "chip_seq", Synonyms: []string{"ChIP", "binding", "peak", "chromatin", "histone", "antibody", "ChIP-seq"}},
	{ID: "atac_seq", Synonyms: []string{"ATAC", "accessibility", "open chromatin", "transposase"}},
	{ID: "bisulfite_seq", Synonyms: []string{"bisulfite", "methylation", "WGBS", "CpG", "5mC", "BS-seq"}},
	{ID: "dnase_seq", Synonyms: []string{"DNase", "hypersensitivity", "DHS"}},
	{ID: "mnase_seq", Synonyms: []string{"MNase", "nucleosome", "positioning"}},
	{ID: "proteomics", Synonyms: []string{"protein", "peptide", "mass spec", "LC-MS", "tandem mass", "proteome"}},
	{ID: "phosphoproteomics", Synonyms: []string{"phosphorylation", "phosphopeptide", "PTM", "kinase"}},
	{ID: "hi_c", Synonyms: []string{"Hi-C", "chromosome conformation", "3D genome", "contact map"}},
	{ID: "clip_seq", Synonyms: []string{"CLIP", "RNA-binding protein", "RBP", "crosslinking"}},
	{ID: "ribosome_profiling", Synonyms: []string{"ribosome profiling", "Ribo-seq", "translation", "footprint"}},
	{ID: "degradome", Synonyms: []string{"degradome", "PARE", "cleavage site"}},
	{ID: "general", Synonyms: []string{"sample", "replicate", "condition", "treatment", "control", "analysis", "biological replicate", "technical replicate", "time course", "dose response"}},
}

var generalQualityKeywords = []string{
	"response", "expression", "analysis", "study", "effect", "regulation",
	"function", "mechanism", "pathway", "role", "identification", "characterization",
	"profiling",
}

var plantQualityKeywords = []string{
	"development", "morphology", "growth", "differentiation", "flowering", "germination",
	"senescence", "ripening", "stress", "tolerance", "resistance", "adaptation",
	"abiotic", "biotic", "defense", "immunity", "tissue", "organ",
	"root", "leaf", "shoot", "stem", "flower", "seed",
	"fruit", "meristem", "transcriptome", "genome", "proteome", "metabolome",
	"gene expression", "transcript", "protein", "metabolite", "epigenetic", "chromatin",
	"methylation", "photosynthesis", "respiration", "transpiration", "nutrient", "hormone",
	"signaling", "transport",
}

var sampleTypeKeywords = []string{
	"root", "roots", "root tip", "lateral root", "primary root", "adventitious root",
	"root hair", "root cap", "radicle", "shoot", "stem", "hypocotyl",
	"epicotyl", "internode", "node", "leaf", "leaves", "cotyledon",
	"true leaf", "rosette", "blade", "meristem", "SAM", "shoot apical meristem",
	"RAM", "root apical meristem", "apical meristem", "cambium", "vascular cambium", "flower",
	"floral", "inflorescence", "bud", "floral bud", "petal", "sepal",
	"stamen", "carpel", "pistil", "anther", "stigma", "style",
	"ovary", "seed", "fruit", "berry", "silique", "pod",
	"grain", "kernel", "embryo", "endosperm", "pericarp", "testa",
	"seed coat", "pollen", "pollen grain", "microspore", "epidermis", "cortex",
	"endodermis", "pericycle", "stele", "xylem", "phloem", "vascular tissue",
	"parenchyma", "mesophyll", "palisade", "spongy mesophyll", "guard cell", "stomata",
	"protoplast", "cell culture", "suspension culture", "callus", "mesophyll cell", "guard cells",
	"trichome", "seedling", "germinating seed", "mature plant", "flowering plant", "whole plant",
	"aerial tissue", "above ground", "below ground", "tuber", "bulb", "rhizome",
	"stolon", "corm", "nodule", "root nodule", "mixed tissue", "pooled",
	"combined tissue", "whole",
}

var modelPlantOrganisms = []string{
	"Arabidopsis thaliana", "Oryza sativa", "Zea mays",
	"Medicago truncatula", "Brachypodium distachyon", "Triticum aestivum",
	"Hordeum vulgare", "Sorghum bicolor", "Setaria italica",
	"Avena sativa", "Glycine max", "Phaseolus vulgaris",
	"Pisum sativum", "Cicer arietinum", "Lens culinaris",
	"Solanum lycopersicum", "Solanum tuberosum", "Capsicum annuum",
	"Nicotiana tabacum", "Nicotiana benthamiana", "Brassica napus",
	"Brassica oleracea", "Brassica rapa", "Vitis vinifera",
	"Malus domestica", "Prunus persica", "Fragaria vesca",
	"Citrus sinensis", "Musa acuminata", "Populus trichocarpa",
	"Eucalyptus grandis", "Pinus taeda", "Cucumis sativus",
	"Cucurbita pepo", "Lactuca sativa", "Spinacia oleracea",
	"Daucus carota", "Saccharum officinarum", "Panicum virgatum",
	"Gossypium hirsutum", "Cannabis sativa", "Chlamydomonas reinhardtii",
}

var plantGenusIndicators = []string{
	"arabidopsis", "oryza", "zea", "medicago", "brachypodium",
	"triticum", "hordeum", "sorghum", "glycine", "phaseolus",
	"solanum", "capsicum", "nicotiana", "brassica",
	"vitis", "malus", "prunus", "fragaria", "citrus", "musa",
	"populus", "eucalyptus", "pinus",
	"gossypium", "saccharum", "panicum", "cannabis",
	"cucumis", "cucurbita", "lactuca", "spinacia", "daucus",
	"chlamydomonas",
}
