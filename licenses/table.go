package licenses

// canonical maps lower-cased license fragments to their canonical SPDX
// identifier. Besides the identifiers themselves it carries the spellings
// registries actually emit: full names, versionless shorthands and the
// GNU vN/vN+ forms.
var canonical = map[string]string{
	"0bsd":         "0BSD",
	"afl-3.0":      "AFL-3.0",
	"agpl-3.0":     "AGPL-3.0",
	"agpl-3.0-only": "AGPL-3.0-only",
	"agpl-3.0-or-later": "AGPL-3.0-or-later",
	"agpl3":        "AGPL-3.0",
	"agplv3":       "AGPL-3.0",
	"apache":       "Apache-2.0",
	"apache 2":     "Apache-2.0",
	"apache 2.0":   "Apache-2.0",
	"apache-2":     "Apache-2.0",
	"apache-2.0":   "Apache-2.0",
	"apache2":      "Apache-2.0",
	"apache2.0":    "Apache-2.0",
	"apache license": "Apache-2.0",
	"apache license 2.0":           "Apache-2.0",
	"apache license, version 2.0":  "Apache-2.0",
	"apache software license":      "Apache-2.0",
	"apache-1.1":   "Apache-1.1",
	"artistic":     "Artistic-2.0",
	"artistic-1.0": "Artistic-1.0",
	"artistic-2.0": "Artistic-2.0",
	"bsd":          "BSD-3-Clause",
	"bsd license":  "BSD-3-Clause",
	"bsd-2-clause": "BSD-2-Clause",
	"bsd-3-clause": "BSD-3-Clause",
	"bsd-4-clause": "BSD-4-Clause",
	"bsd 2-clause": "BSD-2-Clause",
	"bsd 3-clause": "BSD-3-Clause",
	"new bsd":      "BSD-3-Clause",
	"new bsd license":        "BSD-3-Clause",
	"simplified bsd":         "BSD-2-Clause",
	"bsl-1.0":      "BSL-1.0",
	"boost":        "BSL-1.0",
	"boost software license":  "BSL-1.0",
	"cc-by-3.0":    "CC-BY-3.0",
	"cc-by-4.0":    "CC-BY-4.0",
	"cc-by-sa-4.0": "CC-BY-SA-4.0",
	"cc0":          "CC0-1.0",
	"cc0-1.0":      "CC0-1.0",
	"cddl-1.0":     "CDDL-1.0",
	"cecill-2.1":   "CECILL-2.1",
	"epl-1.0":      "EPL-1.0",
	"epl-2.0":      "EPL-2.0",
	"eclipse public license 1.0": "EPL-1.0",
	"eclipse public license 2.0": "EPL-2.0",
	"eupl-1.2":     "EUPL-1.2",
	"gpl":          "GPL-2.0",
	"gpl-2":        "GPL-2.0",
	"gpl-2.0":      "GPL-2.0",
	"gpl-2.0-only": "GPL-2.0-only",
	"gpl-2.0-or-later": "GPL-2.0-or-later",
	"gpl-2.0+":     "GPL-2.0+",
	"gpl-3":        "GPL-3.0",
	"gpl-3.0":      "GPL-3.0",
	"gpl-3.0-only": "GPL-3.0-only",
	"gpl-3.0-or-later": "GPL-3.0-or-later",
	"gpl-3.0+":     "GPL-3.0+",
	"gpl2":         "GPL-2.0",
	"gpl3":         "GPL-3.0",
	"gplv2":        "GPL-2.0",
	"gplv2+":       "GPL-2.0+",
	"gplv3":        "GPL-3.0",
	"gplv3+":       "GPL-3.0+",
	"isc":          "ISC",
	"isc license":  "ISC",
	"lgpl":         "LGPL-2.1",
	"lgpl-2.1":     "LGPL-2.1",
	"lgpl-2.1-only":     "LGPL-2.1-only",
	"lgpl-2.1-or-later": "LGPL-2.1-or-later",
	"lgpl-2.1+":    "LGPL-2.1+",
	"lgpl-3.0":     "LGPL-3.0",
	"lgpl-3.0-only":     "LGPL-3.0-only",
	"lgpl-3.0-or-later": "LGPL-3.0-or-later",
	"lgpl-3.0+":    "LGPL-3.0+",
	"lgplv2":       "LGPL-2.1",
	"lgplv2.1":     "LGPL-2.1",
	"lgplv3":       "LGPL-3.0",
	"mit":          "MIT",
	"mit license":  "MIT",
	"the mit license": "MIT",
	"mit license (mit)": "MIT",
	"expat":        "MIT",
	"mpl":          "MPL-2.0",
	"mpl-1.1":      "MPL-1.1",
	"mpl-2.0":      "MPL-2.0",
	"mpl2":         "MPL-2.0",
	"mozilla public license 2.0": "MPL-2.0",
	"ms-pl":        "MS-PL",
	"ms-rl":        "MS-RL",
	"ofl-1.1":      "OFL-1.1",
	"osl-3.0":      "OSL-3.0",
	"php-3.01":     "PHP-3.01",
	"postgresql":   "PostgreSQL",
	"psf":          "PSF-2.0",
	"psf-2.0":      "PSF-2.0",
	"python software foundation license": "PSF-2.0",
	"public domain": "Unlicense",
	"ruby":         "Ruby",
	"unlicense":    "Unlicense",
	"the unlicense": "Unlicense",
	"upl-1.0":      "UPL-1.0",
	"vim":          "Vim",
	"w3c":          "W3C",
	"wtfpl":        "WTFPL",
	"x11":          "X11",
	"zlib":         "Zlib",
	"zlib license": "Zlib",
	"zpl-2.1":      "ZPL-2.1",
}
